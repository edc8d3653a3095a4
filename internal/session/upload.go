package session

import (
	"context"
	"strings"
	"time"

	"github.com/rbright/voxdrop/internal/indicator"
)

const (
	msgNothingToUpload = "No audio recorded yet."
	msgUploadSuccess   = "Recording uploaded successfully!"
	msgUploadFailure   = "Error uploading recording."
)

// Upload sends the held clip to the backend. The clip is cleared only after a
// 2xx response, and only if no newer recording replaced it meanwhile.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.RLock()
	clip := c.clip
	c.mu.RUnlock()

	if clip == nil {
		c.notifier.Notice(ctx, indicator.LevelInfo, msgNothingToUpload)
		return ErrNothingToUpload
	}

	filename := ClipFilename(clip.MIMEType, c.now())
	c.logger.Info("uploading recording", "filename", filename, "bytes", clip.Bytes)

	if err := c.backend.UploadAudio(ctx, filename, clip.MIMEType, clip.Data); err != nil {
		c.logger.Error("upload failed", "filename", filename, "error", err.Error(), "kind", string(Kind(err)))
		c.notifier.Notice(ctx, indicator.LevelError, msgUploadFailure)
		return err
	}

	c.notifier.Notice(ctx, indicator.LevelSuccess, msgUploadSuccess)
	c.refresh(ctx, EventUpload)

	c.mu.Lock()
	if c.clip == clip {
		c.clip = nil
	}
	c.mu.Unlock()

	c.logger.Info("upload complete", "filename", filename)
	return nil
}

// ClipFilename derives the upload filename from the capture MIME type and a UTC
// millisecond timestamp, e.g. recording_2026-10-18T09-15-02-123Z.wav.
func ClipFilename(mimeType string, at time.Time) string {
	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "recording_" + stamp + "." + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	case "audio/l16":
		return "pcm"
	}

	_, sub, ok := strings.Cut(base, "/")
	if !ok || sub == "" {
		return "bin"
	}
	return strings.TrimPrefix(sub, "x-")
}
