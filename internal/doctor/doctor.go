// Package doctor runs readiness diagnostics for config, backend, audio, and notices.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voxdrop/internal/audio"
	"github.com/rbright/voxdrop/internal/backend"
	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/hypr"
	"github.com/rbright/voxdrop/internal/version"
)

const pingTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "owner socket directory available", "XDG_RUNTIME_DIR is empty; the owner socket cannot be created"))

	checks = append(checks, checkBaseURL(cfg))
	checks = append(checks, checkBackendReachable(ctx, cfg))
	checks = append(checks, checkAudioSelection(ctx, cfg))
	checks = append(checks, checkNotifier(ctx, cfg.Indicator)...)

	if len(cfg.RefreshCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.RefreshCmd.Argv, "refresh_cmd"))
	}

	return Report{Checks: checks}
}

// checkConfig summarizes where config came from.
func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if loaded.EnvFile != "" {
		message += fmt.Sprintf(", env from %q", loaded.EnvFile)
	}
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warning(s))", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkBaseURL re-validates the effective base URL and names its source.
func checkBaseURL(cfg config.Config) Check {
	if _, err := config.Validate(cfg); err != nil {
		return Check{Name: "api.base_url", Pass: false, Message: err.Error()}
	}
	source := "config"
	if strings.TrimSpace(os.Getenv(config.EnvAPIURL)) != "" {
		source = config.EnvAPIURL
	}
	return Check{Name: "api.base_url", Pass: true, Message: fmt.Sprintf("%s (from %s)", cfg.API.BaseURL, source)}
}

// checkBackendReachable treats any HTTP response as proof the backend is up.
func checkBackendReachable(ctx context.Context, cfg config.Config) Check {
	client := backend.New(
		cfg.API.BaseURL,
		backend.WithHTTPClient(&http.Client{Timeout: pingTimeout}),
		backend.WithUserAgent(version.UserAgent()),
	)

	status, err := client.Ping(ctx)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: err.Error()}
	}
	return Check{Name: "backend", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", status, client.BaseURL())}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkNotifier validates the binaries behind the configured notice backend.
func checkNotifier(ctx context.Context, cfg config.IndicatorConfig) []Check {
	if !cfg.Enable {
		return []Check{{Name: "indicator", Pass: true, Message: "disabled; notices go to the log only"}}
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "hypr") {
		bin := checkBinary("hyprctl", "hypr notices")
		if !bin.Pass {
			return []Check{bin}
		}
		queryCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		info, err := hypr.QueryVersion(queryCtx)
		if err != nil {
			return []Check{bin, {Name: "hyprland", Pass: false, Message: err.Error()}}
		}
		return []Check{bin, {Name: "hyprland", Pass: true, Message: "running " + firstNonEmpty(info.Tag, info.Commit)}}
	}

	return []Check{checkBinary("busctl", "desktop notices")}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q at %d Hz", selection.Device.ID, cfg.Audio.SampleRate)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
