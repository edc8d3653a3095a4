// Package hook runs the configured refresh command after files change on the backend.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/session"
)

// EnvEvent names the triggering event in the refresh command environment.
const EnvEvent = "VOXDROP_EVENT"

const refreshTimeout = 2 * time.Second

// payload is written to the refresh command's stdin as one JSON line.
type payload struct {
	Event   string `json:"event"`
	BaseURL string `json:"base_url"`
	At      string `json:"at"`
}

// NewRefresher builds the controller's refresh sink from refresh_cmd.
// Command failures are logged and never reach the controller.
func NewRefresher(cfg config.Config, logger *slog.Logger) session.RefreshFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	argv := append([]string(nil), cfg.RefreshCmd.Argv...)
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")

	return func(ctx context.Context, event session.Event) {
		if len(argv) == 0 {
			logger.Info("files changed", "event", string(event))
			return
		}

		body, err := json.Marshal(payload{
			Event:   string(event),
			BaseURL: baseURL,
			At:      time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			logger.Error("encode refresh payload", "error", err.Error())
			return
		}

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		env := []string{EnvEvent + "=" + string(event)}
		if err := runCommandWithInput(runCtx, argv, env, string(body)+"\n"); err != nil {
			logger.Error("refresh command failed", "event", string(event), "error", err.Error())
			return
		}
		logger.Debug("refresh command complete", "event", string(event))
	}
}

// runCommandWithInput executes argv with extra env and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, env []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
