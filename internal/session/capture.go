package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/voxdrop/internal/fsm"
	"github.com/rbright/voxdrop/internal/indicator"
)

const (
	msgMicrophoneDenied = "Error accessing microphone. Please check permissions."
	msgMicrophoneFailed = "Error accessing microphone."
	msgEmptyCapture     = "No audio captured."
	msgEncodeFailed     = "Error saving recording."
)

// Toggle starts a recording from Idle or stops the active one from Recording.
func (c *Controller) Toggle(ctx context.Context) error {
	c.toggleMu.Lock()
	defer c.toggleMu.Unlock()

	if c.State() == fsm.StateRecording {
		return c.stopCapture(ctx)
	}
	return c.startCapture(ctx)
}

// startCapture opens the source and begins collecting PCM in the background.
func (c *Controller) startCapture(ctx context.Context) error {
	stream, err := c.source.Open(ctx)
	if err != nil {
		msg := msgMicrophoneFailed
		if errors.Is(err, ErrPermissionDenied) {
			msg = msgMicrophoneDenied
		} else {
			err = fmt.Errorf("%w: %w", ErrDevice, err)
		}
		c.logger.Error("microphone access failed", "error", err.Error(), "kind", string(Kind(err)))
		c.notifier.Notice(ctx, indicator.LevelError, msg)
		return err
	}

	if err := c.transition(fsm.EventStart); err != nil {
		_ = stream.Stop()
		return err
	}

	pcm := make(chan []byte, 1)
	go collect(stream.Chunks(), pcm)

	c.mu.Lock()
	c.active = &activeCapture{stream: stream, pcm: pcm}
	c.mu.Unlock()

	c.logger.Info("recording started", "device", stream.DeviceName())
	c.notifier.ShowRecording(ctx)
	return nil
}

// stopCapture flushes the stream, waits for the collector, and replaces the clip.
func (c *Controller) stopCapture(ctx context.Context) error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if err := c.transition(fsm.EventStop); err != nil {
		return err
	}
	c.notifier.CueStop(ctx)
	c.notifier.Hide(ctx)

	if active == nil {
		return fmt.Errorf("%w: no active capture", ErrDevice)
	}

	stopErr := active.stream.Stop()
	raw := <-active.pcm
	if stopErr != nil {
		c.logger.Warn("capture stop reported error", "error", stopErr.Error())
	}

	if len(raw) == 0 {
		c.logger.Warn("recording produced no audio", "device", active.stream.DeviceName())
		c.notifier.Notice(ctx, indicator.LevelError, msgEmptyCapture)
		return ErrEmptyCapture
	}

	data, mimeType, err := c.encoder.Encode(raw)
	if err != nil {
		err = fmt.Errorf("%w: encode clip: %w", ErrDevice, err)
		c.logger.Error("clip encoding failed", "error", err.Error())
		c.notifier.Notice(ctx, indicator.LevelError, msgEncodeFailed)
		return err
	}

	clip := &Clip{
		Data:       data,
		MIMEType:   mimeType,
		Device:     active.stream.DeviceName(),
		Bytes:      len(data),
		CapturedAt: c.now().UTC(),
	}

	c.mu.Lock()
	c.clip = clip
	c.mu.Unlock()

	c.logger.Info("recording stopped",
		"device", clip.Device,
		"pcm_bytes", len(raw),
		"clip_bytes", clip.Bytes,
		"mime", clip.MIMEType,
	)
	return nil
}

// collect drains chunks until the stream closes them and delivers the joined PCM once.
func collect(chunks <-chan []byte, out chan<- []byte) {
	var buf []byte
	for chunk := range chunks {
		buf = append(buf, chunk...)
	}
	out <- buf
	close(out)
}
