// Package app wires parsed commands to the owner process or a forwarding client.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/voxdrop/internal/audio"
	"github.com/rbright/voxdrop/internal/cli"
	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/doctor"
	"github.com/rbright/voxdrop/internal/ipc"
	"github.com/rbright/voxdrop/internal/logging"
	"github.com/rbright/voxdrop/internal/version"
)

const (
	probeTimeout  = 220 * time.Millisecond
	toggleTimeout = 5 * time.Second
)

// Runner executes one CLI invocation against the given output streams.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Deps overrides the runtime collaborators; nil uses PulseAudio and HTTP.
	Deps DepsFunc
}

// Execute runs args with a default Runner and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return Runner{Stdout: stdout, Stderr: stderr}.Execute(ctx, args)
}

// Execute parses args and dispatches the command. Exit codes: 0 ok, 1 runtime
// failure, 2 usage error.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	switch {
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n\n%s", err, cli.HelpText("voxdrop"))
		return 2
	case parsed.ShowHelp:
		fmt.Fprint(r.Stdout, cli.HelpText("voxdrop"))
		return 0
	case parsed.Command == cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		return r.fail(fmt.Errorf("setup logging: %w", err))
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := r.loadConfig(parsed.ConfigPath, logger)
	if err != nil {
		return 1
	}
	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"base_url", loaded.Config.API.BaseURL,
		"log", logRuntime.Path,
	)

	if req, timeout, ok := forwardedRequest(parsed); ok {
		return r.forward(ctx, req, timeout)
	}

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded)
		fmt.Fprintln(r.Stdout, report.String())
		if !report.OK() {
			return 1
		}
		return 0
	case cli.CommandDevices:
		return r.listDevices(ctx)
	case cli.CommandStatus:
		return r.status(ctx)
	case cli.CommandToggle:
		return r.toggle(ctx, loaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// forwardedRequest maps commands that only an owner can serve onto IPC requests.
func forwardedRequest(parsed cli.Parsed) (ipc.Request, time.Duration, bool) {
	switch parsed.Command {
	case cli.CommandUpload:
		return ipc.Request{Command: "upload"}, 0, true
	case cli.CommandExtract:
		if !parsed.HasURL {
			return ipc.Request{Command: "extract-target"}, 0, true
		}
		return ipc.Request{Command: "extract", URL: parsed.URL}, 0, true
	case cli.CommandQuit:
		return ipc.Request{Command: "quit"}, probeTimeout, true
	default:
		return ipc.Request{}, 0, false
	}
}

func (r Runner) loadConfig(path string, logger *slog.Logger) (config.Loaded, error) {
	loaded, err := config.Load(path)
	if err != nil {
		r.fail(err)
		logger.Error("load config failed", "error", err.Error())
		return config.Loaded{}, err
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	return loaded, nil
}

func (r Runner) listDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return r.fail(err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}
	for _, d := range devices {
		fmt.Fprintln(r.Stdout, deviceLine(d))
	}
	return 0
}

// deviceLine renders one source; the default source is marked with "*".
func deviceLine(d audio.Device) string {
	mark := " "
	if d.Default {
		mark = "*"
	}
	return fmt.Sprintf("%s id=%s | description=%q | state=%s | available=%s | muted=%s",
		mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// fail prints err and returns the runtime-failure exit code.
func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}
