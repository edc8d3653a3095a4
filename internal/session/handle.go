package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/voxdrop/internal/fsm"
	"github.com/rbright/voxdrop/internal/ipc"
)

// Handle serves IPC commands for the owner process.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.respond(nil, "status")
	case "toggle":
		if err := c.Toggle(ctx); err != nil {
			return c.respond(err, "")
		}
		if c.State() == fsm.StateRecording {
			return c.respond(nil, "recording started")
		}
		return c.respond(nil, "recording stopped")
	case "upload":
		return c.respond(c.Upload(ctx), "recording uploaded")
	case "extract":
		return c.respondExtract(c.Extract(ctx, req.URL))
	case "extract-target":
		return c.respondExtract(c.ExtractTarget(ctx))
	case "quit":
		c.quit()
		return c.respond(nil, "quitting")
	default:
		return c.respond(fmt.Errorf("unknown command: %s", req.Command), "")
	}
}

// respondExtract reports a submit during InFlight as an ignored no-op.
func (c *Controller) respondExtract(err error) ipc.Response {
	if errors.Is(err, ErrExtractionInFlight) {
		return c.respond(nil, "extraction already in flight; ignored")
	}
	return c.respond(err, "audio extracted")
}

// respond fills a response from the current snapshot.
func (c *Controller) respond(err error, message string) ipc.Response {
	snap := c.Snapshot()
	resp := ipc.Response{
		OK:         err == nil,
		State:      string(snap.Session),
		Extraction: string(snap.Extraction),
		HasClip:    snap.HasClip,
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Message = message
	return resp
}
