package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/voxdrop/internal/audio"
	"github.com/rbright/voxdrop/internal/backend"
	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/hook"
	"github.com/rbright/voxdrop/internal/indicator"
	"github.com/rbright/voxdrop/internal/ipc"
	"github.com/rbright/voxdrop/internal/session"
	"github.com/rbright/voxdrop/internal/version"
)

// DepsFunc builds controller collaborators for an owner process.
type DepsFunc func(config.Config, *slog.Logger) session.Deps

// toggle forwards to a running owner, or becomes the owner and starts recording.
func (r Runner) toggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}

	req := ipc.Request{Command: "toggle"}
	if resp, handled, err := tryForward(ctx, socketPath, req, toggleTimeout); handled {
		return r.reply(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	switch {
	case errors.Is(err, ipc.ErrAlreadyRunning):
		// Lost the race to another owner.
		resp, _, err := tryForward(ctx, socketPath, req, toggleTimeout)
		return r.reply(resp, err)
	case err != nil:
		return r.fail(err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	return r.own(ctx, listener, cfg, logger)
}

// own runs the controller behind listener until quit, cancellation, or a
// server failure.
func (r Runner) own(ctx context.Context, listener net.Listener, cfg config.Config, logger *slog.Logger) int {
	build := r.Deps
	if build == nil {
		build = runtimeDeps
	}
	controller := session.NewController(logger, build(cfg, logger))
	defer controller.Close()

	if err := controller.Toggle(ctx); err != nil {
		logger.Error("owner start failed", "error", err.Error(), "kind", string(session.Kind(err)))
		return r.fail(err)
	}
	fmt.Fprintln(r.Stdout, "recording started")
	logger.Info("owner started", "socket", listener.Addr().String())

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	served := make(chan error, 1)
	go func() { served <- ipc.Serve(serveCtx, listener, controller) }()

	select {
	case <-controller.Done():
		logger.Info("owner quit requested")
	case <-ctx.Done():
		logger.Info("owner interrupted", "error", ctx.Err().Error())
	case err := <-served:
		return r.serveResult(err)
	}

	stopServe()
	if code := r.serveResult(<-served); code != 0 {
		return code
	}
	logSnapshot(logger, controller.Snapshot())
	return 0
}

func (r Runner) serveResult(err error) int {
	if err != nil {
		return r.fail(fmt.Errorf("ipc server failed: %w", err))
	}
	return 0
}

// runtimeDeps wires PulseAudio capture, WAV packaging, the HTTP backend, and notices.
func runtimeDeps(cfg config.Config, logger *slog.Logger) session.Deps {
	return session.Deps{
		Source:   pulseSource(cfg.Audio),
		Encoder:  audio.WAVEncoder{SampleRate: cfg.Audio.SampleRate, Channels: 1},
		Backend:  backend.New(cfg.API.BaseURL, backend.WithUserAgent(version.UserAgent()), backend.WithLogger(logger)),
		Notifier: indicator.NewHyprNotify(cfg.Indicator, logger),
		Refresh:  hook.NewRefresher(cfg, logger),
	}
}

// pulseSource adapts audio.PulseSource and maps denied access onto the session taxonomy.
func pulseSource(cfg config.AudioConfig) session.Source {
	src := audio.PulseSource{Input: cfg.Input, Fallback: cfg.Fallback, SampleRate: cfg.SampleRate}
	return session.SourceFunc(func(ctx context.Context) (session.Stream, error) {
		capture, err := src.Open(ctx)
		switch {
		case errors.Is(err, audio.ErrAccessDenied):
			return nil, fmt.Errorf("%w: %w", session.ErrPermissionDenied, err)
		case err != nil:
			return nil, err
		}
		return capture, nil
	})
}

func logSnapshot(logger *slog.Logger, snap session.Snapshot) {
	if logger == nil {
		return
	}
	logger.Info("owner exiting",
		"state", snap.Session,
		"extraction", snap.Extraction,
		"has_clip", snap.HasClip,
		"clip_bytes", snap.ClipBytes,
		"clip_mime", snap.ClipMIME,
		"target_url_set", snap.TargetURL != "",
	)
}
