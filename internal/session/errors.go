package session

import (
	"errors"

	"github.com/rbright/voxdrop/internal/backend"
)

var (
	// ErrPermissionDenied indicates the user or platform refused microphone access.
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrDevice indicates capture could not be opened, read, or encoded.
	ErrDevice = errors.New("audio device error")
	// ErrEmptyCapture indicates a recording stopped without producing any audio.
	ErrEmptyCapture = errors.New("recording captured no audio")
	// ErrNothingToUpload indicates upload was requested with no clip held.
	ErrNothingToUpload = errors.New("no audio recorded yet")
	// ErrEmptyURL indicates extraction was requested with a blank target URL.
	ErrEmptyURL = errors.New("target URL is empty")
	// ErrExtractionInFlight indicates an extraction request is already outstanding.
	ErrExtractionInFlight = errors.New("extraction already in flight")
)

// ErrorKind is the user-facing classification of a controller error.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindPermissionDenied ErrorKind = "permission_denied"
	KindDevice           ErrorKind = "device_error"
	KindValidation       ErrorKind = "validation_error"
	KindNetwork          ErrorKind = "network_failure"
	KindServerRejection  ErrorKind = "server_rejection"
	KindUnknown          ErrorKind = "unknown"
)

// Kind maps err onto the controller error taxonomy.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrDevice), errors.Is(err, ErrEmptyCapture):
		return KindDevice
	case errors.Is(err, ErrNothingToUpload), errors.Is(err, ErrEmptyURL), errors.Is(err, ErrExtractionInFlight):
		return KindValidation
	case backend.IsStatusError(err):
		return KindServerRejection
	case errors.Is(err, backend.ErrTransport):
		return KindNetwork
	default:
		return KindUnknown
	}
}
