// Package indicator handles on-screen notices and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/hypr"
)

// Level selects the styling, timeout, and cue of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

const (
	recordingText      = "Recording…"
	fallbackErrorText  = "Something went wrong"
	recordingTimeoutMS = 300000
	defaultTimeoutMS   = 1200
	dispatchTimeout    = 400 * time.Millisecond
)

// noticeStyle carries per-level presentation for both backends.
type noticeStyle struct {
	icon      int
	color     string
	timeoutMS int
	urgency   int
}

// surface is where notices are drawn.
type surface interface {
	show(ctx context.Context, st noticeStyle, text string) error
	clear(ctx context.Context) error
}

type hyprSurface struct{}

func (hyprSurface) show(ctx context.Context, st noticeStyle, text string) error {
	return hypr.Notify(ctx, st.icon, st.timeoutMS, st.color, text)
}

func (hyprSurface) clear(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}

// HyprNotify is the notifier used by the owner process. It draws on Hyprland
// or, with backend "desktop", through freedesktop notifications.
type HyprNotify struct {
	cfg     config.IndicatorConfig
	logger  *slog.Logger
	surface surface

	cueMu sync.Mutex
}

// NewHyprNotify creates a notifier from config.
func NewHyprNotify(cfg config.IndicatorConfig, logger *slog.Logger) *HyprNotify {
	var s surface = hyprSurface{}
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		s = newDesktopSurface(cfg.DesktopAppName)
	}
	return &HyprNotify{cfg: cfg, logger: logger, surface: s}
}

// ShowRecording plays the start cue and shows a long-lived recording notice.
func (h *HyprNotify) ShowRecording(ctx context.Context) {
	h.playCue(cueStart)
	st := h.style(LevelInfo)
	st.timeoutMS = recordingTimeoutMS
	h.show(ctx, st, recordingText)
}

// CueStop emits the stop cue.
func (h *HyprNotify) CueStop(context.Context) {
	h.playCue(cueStop)
}

// Notice shows a user-facing message. Success and error notices carry a cue;
// an error with no text falls back to a generic message.
func (h *HyprNotify) Notice(ctx context.Context, level Level, text string) {
	if kind, ok := levelCues[level]; ok {
		h.playCue(kind)
	}
	text = strings.TrimSpace(text)
	if text == "" && level == LevelError {
		text = fallbackErrorText
	}
	if text == "" {
		return
	}
	h.show(ctx, h.style(level), text)
}

// Hide dismisses the active notice.
func (h *HyprNotify) Hide(ctx context.Context) {
	if !h.cfg.Enable {
		return
	}
	h.dispatch(ctx, h.surface.clear)
}

var levelCues = map[Level]cueKind{
	LevelSuccess: cueSuccess,
	LevelError:   cueFailure,
}

func (h *HyprNotify) show(ctx context.Context, st noticeStyle, text string) {
	if !h.cfg.Enable {
		return
	}
	h.dispatch(ctx, func(ctx context.Context) error {
		return h.surface.show(ctx, st, text)
	})
}

func (h *HyprNotify) style(level Level) noticeStyle {
	switch level {
	case LevelError:
		return noticeStyle{icon: 3, color: "rgb(f38ba8)", timeoutMS: orDefault(h.cfg.ErrorTimeoutMS), urgency: urgencyCritical}
	case LevelSuccess:
		return noticeStyle{icon: 5, color: "rgb(a6e3a1)", timeoutMS: orDefault(h.cfg.NoticeTimeoutMS), urgency: urgencyNormal}
	default:
		return noticeStyle{icon: 1, color: "rgb(89b4fa)", timeoutMS: orDefault(h.cfg.NoticeTimeoutMS), urgency: urgencyNormal}
	}
}

func orDefault(ms int) int {
	if ms <= 0 {
		return defaultTimeoutMS
	}
	return ms
}

// dispatch bounds one surface call; failures are logged at debug level only.
func (h *HyprNotify) dispatch(ctx context.Context, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		h.debug("indicator dispatch failed", err)
	}
}

// playCue plays kind in the background; cues never overlap.
func (h *HyprNotify) playCue(kind cueKind) {
	if !h.cfg.SoundEnable {
		return
	}
	go func() {
		h.cueMu.Lock()
		defer h.cueMu.Unlock()
		if err := emitCue(context.Background(), kind, h.cfg); err != nil {
			h.debug("indicator audio cue failed", err)
		}
	}()
}

func (h *HyprNotify) debug(message string, err error) {
	if h.logger != nil {
		h.logger.Debug(message, "error", err.Error())
	}
}
