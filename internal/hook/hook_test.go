package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/session"
	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdinAndEnv(t *testing.T) {
	scriptPath := writeScript(t, `cat > "$1"; printf '%s' "${VOXDROP_EVENT}" > "$1.env"`)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, []string{EnvEvent + "=upload"}, "hello from voxdrop")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from voxdrop", string(data))

	env, err := os.ReadFile(outputPath + ".env")
	require.NoError(t, err)
	require.Equal(t, "upload", string(env))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestRefresherRunsCommandWithEventPayload(t *testing.T) {
	scriptPath := writeScript(t, `cat > "$1"; printf '%s' "${VOXDROP_EVENT}" > "$1.env"`)
	outputPath := filepath.Join(t.TempDir(), "payload.json")

	cfg := config.Default()
	cfg.API.BaseURL = "http://files.local:8000/"
	cfg.RefreshCmd = config.CommandConfig{Argv: []string{scriptPath, outputPath}}

	refresh := NewRefresher(cfg, nil)
	refresh(context.Background(), session.EventExtract)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "extract", got.Event)
	require.Equal(t, "http://files.local:8000", got.BaseURL)
	_, err = time.Parse(time.RFC3339Nano, got.At)
	require.NoError(t, err)

	env, err := os.ReadFile(outputPath + ".env")
	require.NoError(t, err)
	require.Equal(t, "extract", string(env))
}

func TestRefresherLogsFailureWithoutPanicking(t *testing.T) {
	scriptPath := writeScript(t, `echo "refresh exploded" >&2; exit 1`)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	cfg := config.Default()
	cfg.RefreshCmd = config.CommandConfig{Argv: []string{scriptPath}}

	NewRefresher(cfg, logger)(context.Background(), session.EventUpload)
	require.Contains(t, logs.String(), "refresh command failed")
	require.Contains(t, logs.String(), `"event":"upload"`)
}

func TestRefresherWithoutCommandOnlyLogs(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	NewRefresher(config.Default(), logger)(context.Background(), session.EventUpload)
	require.True(t, strings.Contains(logs.String(), "files changed"))
}

func TestRefresherIgnoresCancelledCallerContext(t *testing.T) {
	scriptPath := writeScript(t, `cat > "$1"`)
	outputPath := filepath.Join(t.TempDir(), "payload.json")

	cfg := config.Default()
	cfg.RefreshCmd = config.CommandConfig{Argv: []string{scriptPath, outputPath}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewRefresher(cfg, nil)(ctx, session.EventUpload)

	_, err := os.Stat(outputPath)
	require.NoError(t, err)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "refresh.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
