package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	baseURL := strings.TrimSpace(cfg.API.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	if err := validate.Var(baseURL, "http_url"); err != nil {
		return nil, fmt.Errorf("api.base_url %q must be an http(s) URL", baseURL)
	}
	if strings.HasSuffix(baseURL, "/") {
		warnings = append(warnings, Warning{Message: "api.base_url has a trailing slash; it will be trimmed"})
	}

	if err := validate.Var(cfg.Audio.SampleRate, "min=8000,max=48000"); err != nil {
		return nil, fmt.Errorf("audio.sample_rate must be between 8000 and 48000")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.NoticeTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.notice_timeout_ms must be >= 0")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.RefreshCmd.Raw != "" && len(cfg.RefreshCmd.Argv) == 0 {
		return nil, fmt.Errorf("refresh_cmd is configured but empty")
	}

	return warnings, nil
}
