package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// EnvAPIURL overrides api.base_url once at startup.
	EnvAPIURL = "VOXDROP_API_URL"
	// EnvFile points at an alternate dotenv file; ".env" in the working directory otherwise.
	EnvFile = "VOXDROP_ENV_FILE"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	EnvFile  string
}

// Load resolves, reads, parses, and validates the runtime configuration, then
// applies dotenv/environment overrides.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	envFile, err := loadDotenv()
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, EnvFile: envFile}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, perr := Parse(string(content), Default())
		if perr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, perr)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if applyEnv(&loaded.Config) {
		if _, err := Validate(loaded.Config); err != nil {
			return Loaded{}, fmt.Errorf("%s: %w", EnvAPIURL, err)
		}
	}

	return loaded, nil
}

// ResolvePath returns explicit when set, otherwise voxdrop/config.jsonc under
// the user config directory ($XDG_CONFIG_HOME or ~/.config).
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "voxdrop", "config.jsonc"), nil
}

// loadDotenv populates unset environment variables from the dotenv file, if any.
func loadDotenv() (string, error) {
	path := strings.TrimSpace(os.Getenv(EnvFile))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("load env file %q: %w", path, err)
	}
	return path, nil
}

// applyEnv overlays environment values and reports whether anything changed.
func applyEnv(cfg *Config) bool {
	raw, ok := os.LookupEnv(EnvAPIURL)
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	cfg.API.BaseURL = strings.TrimSpace(raw)
	return true
}
