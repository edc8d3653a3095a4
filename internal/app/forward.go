package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/voxdrop/internal/ipc"
)

var errNoOwner = errors.New("no active voxdrop session")

// status prints the owner state, or idle when nothing owns the socket.
func (r Runner) status(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"}, probeTimeout)
	switch {
	case !handled:
		fmt.Fprintln(r.Stdout, "idle")
	case err != nil:
		return r.fail(err)
	default:
		fmt.Fprintln(r.Stdout, statusLine(resp))
	}
	return 0
}

// statusLine renders the owner state; extra fields appear only when set.
func statusLine(resp ipc.Response) string {
	parts := []string{resp.State}
	if parts[0] == "" {
		parts[0] = "idle"
	}
	if resp.HasClip {
		parts = append(parts, "clip=held")
	}
	if resp.Extraction != "" && resp.Extraction != "idle" {
		parts = append(parts, "extraction="+resp.Extraction)
	}
	return strings.Join(parts, " ")
}

// forward sends req to the owner and prints its message.
func (r Runner) forward(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return r.fail(err)
	}
	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		return r.fail(errNoOwner)
	}
	return r.reply(resp, err)
}

func (r Runner) reply(resp ipc.Response, err error) int {
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward reports handled=false only when no owner is listening, so the
// caller may become the owner. Owner-side failures come back as handled errors.
func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	switch {
	case err == nil && resp.OK:
		return resp, true, nil
	case err == nil:
		return resp, true, errors.New(resp.Error)
	case ownerAbsent(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
	}
}

// ownerAbsent matches dial failures for a missing socket file or a dead listener.
func ownerAbsent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "no such file or directory")
}
