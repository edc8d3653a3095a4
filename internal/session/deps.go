package session

import (
	"context"
	"errors"

	"github.com/rbright/voxdrop/internal/indicator"
)

// Stream is one live capture. Chunks is closed once Stop has flushed the tail.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
	DeviceName() string
}

// Source opens a capture stream. Opening doubles as the permission check.
type Source interface {
	Open(context.Context) (Stream, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(context.Context) (Stream, error)

func (f SourceFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// Encoder packages raw PCM into a clip container and reports its MIME type.
type Encoder interface {
	Encode(pcm []byte) ([]byte, string, error)
}

// Backend is the remote collaborator for uploads and extractions.
type Backend interface {
	UploadAudio(ctx context.Context, filename string, mimeType string, data []byte) error
	ExtractAudio(ctx context.Context, url string) error
}

// Notifier surfaces recording state and blocking notices to the user.
type Notifier interface {
	ShowRecording(context.Context)
	CueStop(context.Context)
	Hide(context.Context)
	Notice(context.Context, indicator.Level, string)
}

// Event names which operation triggered a refresh.
type Event string

const (
	EventUpload  Event = "upload"
	EventExtract Event = "extract"
)

// RefreshFunc is invoked after each successful upload or extraction.
type RefreshFunc func(context.Context, Event)

// Deps bundles the controller collaborators. Nil members fall back to no-ops.
type Deps struct {
	Source   Source
	Encoder  Encoder
	Backend  Backend
	Notifier Notifier
	Refresh  RefreshFunc
}

type noopNotifier struct{}

func (noopNotifier) ShowRecording(context.Context)                   {}
func (noopNotifier) CueStop(context.Context)                         {}
func (noopNotifier) Hide(context.Context)                            {}
func (noopNotifier) Notice(context.Context, indicator.Level, string) {}

var (
	errNoSource  = errors.New("no audio source configured")
	errNoBackend = errors.New("no backend configured")
)

type unavailableSource struct{}

func (unavailableSource) Open(context.Context) (Stream, error) {
	return nil, errNoSource
}

type unavailableBackend struct{}

func (unavailableBackend) UploadAudio(context.Context, string, string, []byte) error {
	return errNoBackend
}

func (unavailableBackend) ExtractAudio(context.Context, string) error {
	return errNoBackend
}

// rawEncoder keeps PCM unwrapped when no container encoder is wired.
type rawEncoder struct{}

func (rawEncoder) Encode(pcm []byte) ([]byte, string, error) {
	return pcm, "audio/L16", nil
}
