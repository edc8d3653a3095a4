package session

import (
	"context"
	"errors"
	"strings"

	"github.com/rbright/voxdrop/internal/backend"
	"github.com/rbright/voxdrop/internal/fsm"
	"github.com/rbright/voxdrop/internal/indicator"
)

const (
	msgEmptyURL        = "Please enter a valid YouTube URL."
	msgExtractSuccess  = "YouTube audio extracted and saved successfully!"
	msgExtractRejected = "Failed to extract audio. Please check the URL."
	msgExtractFailure  = "Error downloading audio."
)

// Extract stores url as the target and asks the backend to extract its audio.
// While a request is outstanding it returns ErrExtractionInFlight and leaves
// the target untouched.
func (c *Controller) Extract(ctx context.Context, url string) error {
	return c.submit(ctx, &url)
}

// ExtractTarget resubmits the held target URL, typically one kept after a
// failed request.
func (c *Controller) ExtractTarget(ctx context.Context) error {
	return c.submit(ctx, nil)
}

func (c *Controller) submit(ctx context.Context, url *string) error {
	target, err := c.beginExtraction(url)
	switch {
	case errors.Is(err, ErrEmptyURL):
		c.notifier.Notice(ctx, indicator.LevelInfo, msgEmptyURL)
		return err
	case err != nil:
		return err
	}

	c.logger.Info("extracting remote audio", "url", target)
	err = c.backend.ExtractAudio(ctx, target)
	c.settleExtraction(err == nil)

	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			c.logger.Error("extraction rejected", "url", target, "status", statusErr.StatusCode)
			c.logger.Debug("extraction rejection body", "status", statusErr.StatusCode, "body", statusErr.Body)
			c.notifier.Notice(ctx, indicator.LevelError, msgExtractRejected)
		} else {
			c.logger.Error("extraction request failed", "url", target, "error", err.Error())
			c.notifier.Notice(ctx, indicator.LevelError, msgExtractFailure)
		}
		return err
	}

	c.notifier.Notice(ctx, indicator.LevelSuccess, msgExtractSuccess)
	c.refresh(ctx, EventExtract)
	c.logger.Info("extraction complete", "url", target)
	return nil
}

// beginExtraction checks for an outstanding request, stores url when given,
// and enters InFlight in one critical section. It returns the URL to send.
func (c *Controller) beginExtraction(url *string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.extraction == fsm.ExtractionInFlight {
		return "", ErrExtractionInFlight
	}
	if url != nil {
		c.targetURL = *url
	}

	target := strings.TrimSpace(c.targetURL)
	if target == "" {
		return "", ErrEmptyURL
	}

	next, err := fsm.TransitionExtraction(c.extraction, fsm.EventSubmit)
	if err != nil {
		if errors.Is(err, fsm.ErrBusy) {
			return "", ErrExtractionInFlight
		}
		return "", err
	}
	c.extraction = next
	return target, nil
}

// settleExtraction leaves InFlight and, on success, clears the target.
func (c *Controller) settleExtraction(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if next, err := fsm.TransitionExtraction(c.extraction, fsm.EventSettle); err == nil {
		c.extraction = next
	}
	if ok {
		c.targetURL = ""
	}
}
