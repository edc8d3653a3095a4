package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rbright/voxdrop/internal/audio"
	"github.com/rbright/voxdrop/internal/backend"
	"github.com/rbright/voxdrop/internal/cli"
	"github.com/rbright/voxdrop/internal/config"
	"github.com/rbright/voxdrop/internal/ipc"
	"github.com/rbright/voxdrop/internal/session"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithoutConfig(t *testing.T) {
	tests := []struct {
		args       []string
		wantCode   int
		wantStdout string
		wantStderr []string
	}{
		{args: []string{"--help"}, wantStdout: "Usage:"},
		{args: []string{"version"}, wantStdout: "voxdrop"},
		{args: []string{"definitely-not-a-command"}, wantCode: 2, wantStderr: []string{"unknown command", "Usage:"}},
		{args: []string{"extract", "a", "b"}, wantCode: 2, wantStderr: []string{"at most one URL"}},
	}

	for _, tc := range tests {
		var stdout, stderr bytes.Buffer
		code := Execute(context.Background(), tc.args, &stdout, &stderr)
		require.Equal(t, tc.wantCode, code, tc.args)
		require.Contains(t, stdout.String(), tc.wantStdout, tc.args)
		if len(tc.wantStderr) == 0 {
			require.Empty(t, stderr.String(), tc.args)
		}
		for _, want := range tc.wantStderr {
			require.Contains(t, stderr.String(), want, tc.args)
		}
	}
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"api": {"base_url": "nope"}}`), 0o600))

	_, stderr, code := runCLI(t, paths.configPath, "status")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "api.base_url")
}

func TestStatusPrintsIdleWithoutOwner(t *testing.T) {
	paths := setupRunnerEnv(t)

	stdout, stderr, code := runCLI(t, paths.configPath, "status")
	require.Equal(t, 0, code)
	require.Equal(t, "idle\n", stdout)
	require.Empty(t, stderr)
}

func TestStatusPrintsIdleWhenOwnerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t)
	serveSocket(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: req.Command == "status"}
	})

	stdout, stderr, code := runCLI(t, paths.configPath, "status")
	require.Equal(t, 0, code)
	require.Equal(t, "idle\n", stdout)
	require.Empty(t, stderr)
}

func TestRunnerForwardOnlyCommandsNeedOwner(t *testing.T) {
	paths := setupRunnerEnv(t)

	for _, args := range [][]string{{"upload"}, {"extract", "https://youtu.be/abc"}, {"extract"}, {"quit"}} {
		_, stderr, code := runCLI(t, paths.configPath, args...)
		require.Equal(t, 1, code, args)
		require.Contains(t, stderr, "no active voxdrop session", args)
	}
}

func TestRunnerForwardsCommandsToActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	serveSocket(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		switch req.Command {
		case "status":
			return ipc.Response{OK: true, State: "recording"}
		case "upload", "extract", "extract-target", "quit", "toggle":
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})

	commands := [][]string{{"status"}, {"upload"}, {"extract", "https://youtu.be/abc"}, {"extract"}, {"quit"}, {"toggle"}}
	for _, cmd := range commands {
		_, stderr, code := runCLI(t, paths.configPath, cmd...)
		require.Equal(t, 0, code, cmd)
		require.Empty(t, stderr, cmd)
	}

	got := make([]ipc.Request, 0, len(commands))
	for range commands {
		got = append(got, <-requests)
	}
	require.ElementsMatch(t, []ipc.Request{
		{Command: "status"},
		{Command: "upload"},
		{Command: "extract", URL: "https://youtu.be/abc"},
		{Command: "extract-target"},
		{Command: "quit"},
		{Command: "toggle"},
	}, got)
}

func TestRunnerForwardedErrorExitsNonZero(t *testing.T) {
	paths := setupRunnerEnv(t)

	serveSocket(t, paths.socketPath(), func(_ context.Context, _ ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "no audio recorded yet"}
	})

	_, stderr, code := runCLI(t, paths.configPath, "upload")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "no audio recorded yet")
}

func TestOwnerLifecycleEndToEnd(t *testing.T) {
	paths := setupRunnerEnv(t)
	srv := newRecordingBackend(t)

	var refreshMu sync.Mutex
	var refreshes []session.Event

	owner := Runner{
		Stdout: &syncBuffer{},
		Stderr: &syncBuffer{},
		Logger: slog.New(slog.DiscardHandler),
		Deps: func(cfg config.Config, logger *slog.Logger) session.Deps {
			return session.Deps{
				Source:  session.SourceFunc(func(context.Context) (session.Stream, error) { return newScriptedStream([]byte{1, 0, 2, 0}), nil }),
				Encoder: audio.WAVEncoder{SampleRate: cfg.Audio.SampleRate, Channels: 1},
				Backend: backend.New(srv.URL, backend.WithLogger(logger)),
				Refresh: func(_ context.Context, event session.Event) {
					refreshMu.Lock()
					defer refreshMu.Unlock()
					refreshes = append(refreshes, event)
				},
			}
		},
	}

	ownerDone := make(chan int, 1)
	go func() {
		ownerDone <- owner.Execute(context.Background(), []string{"--config", paths.configPath, "toggle"})
	}()

	waitForStatus(t, paths.configPath, "recording")

	out, code := runClient(t, paths.configPath, "toggle")
	require.Equal(t, 0, code)
	require.Equal(t, "recording stopped\n", out)

	out, code = runClient(t, paths.configPath, "status")
	require.Equal(t, 0, code)
	require.Equal(t, "idle clip=held\n", out)

	out, code = runClient(t, paths.configPath, "upload")
	require.Equal(t, 0, code)
	require.Equal(t, "recording uploaded\n", out)

	_, code = runClient(t, paths.configPath, "upload")
	require.Equal(t, 1, code)

	out, code = runClient(t, paths.configPath, "extract", "https://youtu.be/abc")
	require.Equal(t, 0, code)
	require.Equal(t, "audio extracted\n", out)

	_, code = runClient(t, paths.configPath, "quit")
	require.Equal(t, 0, code)

	select {
	case exitCode := <-ownerDone:
		require.Equal(t, 0, exitCode)
	case <-time.After(3 * time.Second):
		t.Fatalf("owner did not exit after quit")
	}

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "voxdrop.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.uploads, 1)
	require.True(t, strings.HasPrefix(srv.uploads[0], "recording_"))
	require.True(t, strings.HasSuffix(srv.uploads[0], ".wav"))
	require.Equal(t, []string{`{"youtube_url":"https://youtu.be/abc"}`}, srv.extracts)

	refreshMu.Lock()
	defer refreshMu.Unlock()
	require.Equal(t, []session.Event{session.EventUpload, session.EventExtract}, refreshes)
}

func TestOwnerStopsOnContextCancel(t *testing.T) {
	paths := setupRunnerEnv(t)

	owner := Runner{
		Stdout: &syncBuffer{},
		Stderr: &syncBuffer{},
		Deps: func(config.Config, *slog.Logger) session.Deps {
			return session.Deps{
				Source: session.SourceFunc(func(context.Context) (session.Stream, error) { return newScriptedStream(), nil }),
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	ownerDone := make(chan int, 1)
	go func() {
		ownerDone <- owner.Execute(ctx, []string{"--config", paths.configPath, "toggle"})
	}()

	waitForStatus(t, paths.configPath, "recording")
	cancel()

	select {
	case exitCode := <-ownerDone:
		require.Equal(t, 0, exitCode)
	case <-time.After(3 * time.Second):
		t.Fatalf("owner did not exit after cancel")
	}
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxdrop.sock")
	serveSocket(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == "status" {
			return ipc.Response{OK: true, State: "recording"}
		}
		return ipc.Response{OK: false, Error: "unsupported"}
	})

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, probeTimeout)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "recording", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: "upload"}, 0)
	require.True(t, handled)
	require.EqualError(t, err, "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxdrop.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, probeTimeout)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxdrop.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, probeTimeout)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
	require.NoError(t, listener.Close())
}

func TestPulseBackedCommandsFailWithoutServer(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	stdout, _, code := runCLI(t, paths.configPath, "doctor")
	require.Equal(t, 1, code)
	for _, want := range []string{"config: loaded", "api.base_url", "audio.device"} {
		require.Contains(t, stdout, want)
	}

	_, stderr, code := runCLI(t, paths.configPath, "devices")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "error:")
}

func TestToggleOwnerStartupFailureRemovesSocket(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"indicator": {"enable": false, "sound_enable": false}}`), 0o600))

	_, stderr, code := runCLI(t, paths.configPath, "toggle")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "error:")

	_, err := os.Stat(paths.socketPath())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPulseSourceMapsAccessDenied(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	_, err := pulseSource(config.Default().Audio).Open(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, session.ErrPermissionDenied)
}

func TestStatusLine(t *testing.T) {
	require.Equal(t, "idle", statusLine(ipc.Response{}))
	require.Equal(t, "recording", statusLine(ipc.Response{State: "recording", Extraction: "idle"}))
	require.Equal(t, "idle clip=held extraction=in_flight", statusLine(ipc.Response{State: "idle", HasClip: true, Extraction: "in_flight"}))
}

func TestOwnerAbsent(t *testing.T) {
	require.False(t, ownerAbsent(nil))
	require.True(t, ownerAbsent(os.ErrNotExist))
	require.True(t, ownerAbsent(errors.New("dial unix /tmp/voxdrop.sock: no such file or directory")))
	require.True(t, ownerAbsent(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	require.False(t, ownerAbsent(errors.New("read response: EOF")))
}

func TestForwardedRequest(t *testing.T) {
	tests := []struct {
		parsed  cli.Parsed
		want    ipc.Request
		timeout time.Duration
		ok      bool
	}{
		{parsed: cli.Parsed{Command: cli.CommandUpload}, want: ipc.Request{Command: "upload"}, ok: true},
		{parsed: cli.Parsed{Command: cli.CommandExtract, URL: "https://x.test/v", HasURL: true}, want: ipc.Request{Command: "extract", URL: "https://x.test/v"}, ok: true},
		{parsed: cli.Parsed{Command: cli.CommandExtract}, want: ipc.Request{Command: "extract-target"}, ok: true},
		{parsed: cli.Parsed{Command: cli.CommandQuit}, want: ipc.Request{Command: "quit"}, timeout: probeTimeout, ok: true},
		{parsed: cli.Parsed{Command: cli.CommandToggle}},
		{parsed: cli.Parsed{Command: cli.CommandStatus}},
	}

	for _, tc := range tests {
		req, timeout, ok := forwardedRequest(tc.parsed)
		require.Equal(t, tc.ok, ok, tc.parsed.Command)
		require.Equal(t, tc.want, req, tc.parsed.Command)
		require.Equal(t, tc.timeout, timeout, tc.parsed.Command)
	}
}

func TestDeviceLine(t *testing.T) {
	line := deviceLine(audio.Device{ID: "mic", Description: "USB Mic", State: "idle", Available: true, Default: true})
	require.Equal(t, `* id=mic | description="USB Mic" | state=idle | available=yes | muted=no`, line)

	line = deviceLine(audio.Device{ID: "line", Muted: true})
	require.True(t, strings.HasPrefix(line, "  id=line"))
	require.True(t, strings.HasSuffix(line, "available=no | muted=yes"))
}

func TestLogSnapshotWritesOwnerState(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	logSnapshot(logger, session.Snapshot{Session: "idle", Extraction: "idle", HasClip: true, ClipBytes: 48, ClipMIME: "audio/wav"})

	require.Contains(t, logBuf.String(), "owner exiting")
	require.Contains(t, logBuf.String(), `"clip_bytes":48`)
	require.Contains(t, logBuf.String(), `"target_url_set":false`)
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func (p runnerPaths) socketPath() string {
	return filepath.Join(p.runtimeDir, "voxdrop.sock")
}

// setupRunnerEnv isolates state, runtime, and env overrides, and writes an
// empty config file.
func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	paths := runnerPaths{
		configPath: filepath.Join(t.TempDir(), "config.jsonc"),
		runtimeDir: t.TempDir(),
	}
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", paths.runtimeDir)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvFile, "")
	require.NoError(t, os.WriteFile(paths.configPath, []byte("\n"), 0o600))
	return paths
}

// serveSocket answers IPC requests on path until the test ends.
func serveSocket(t *testing.T, path string, handler func(context.Context, ipc.Request) ipc.Response) {
	t.Helper()

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler)) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	code := runner.Execute(context.Background(), append([]string{"--config", configPath}, args...))
	return stdout.String(), stderr.String(), code
}

func runClient(t *testing.T, configPath string, args ...string) (string, int) {
	t.Helper()

	stdout, _, code := runCLI(t, configPath, args...)
	return stdout, code
}

func waitForStatus(t *testing.T, configPath string, want string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	last := ""
	for time.Now().Before(deadline) {
		out, code := runClient(t, configPath, "status")
		last = strings.TrimSpace(out)
		if code == 0 && strings.HasPrefix(last, want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q (last=%q)", want, last)
}

// scriptedStream emits fixed chunks and closes on Stop.
type scriptedStream struct {
	chunks chan []byte
	once   sync.Once
}

func newScriptedStream(chunks ...[]byte) *scriptedStream {
	s := &scriptedStream{chunks: make(chan []byte, len(chunks))}
	for _, chunk := range chunks {
		s.chunks <- chunk
	}
	return s
}

func (s *scriptedStream) Chunks() <-chan []byte { return s.chunks }
func (s *scriptedStream) DeviceName() string    { return "scripted" }
func (s *scriptedStream) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

type recordingBackend struct {
	*httptest.Server

	mu       sync.Mutex
	uploads  []string
	extracts []string
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()

	rb := &recordingBackend{}
	rb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case backend.UploadPath:
			file, header, err := r.FormFile(backend.UploadField)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = file.Close()
			rb.mu.Lock()
			rb.uploads = append(rb.uploads, header.Filename)
			rb.mu.Unlock()
		case backend.ExtractPath:
			body, _ := io.ReadAll(r.Body)
			rb.mu.Lock()
			rb.extracts = append(rb.extracts, strings.TrimSpace(string(body)))
			rb.mu.Unlock()
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rb.Server.Close)
	return rb
}

// syncBuffer guards writes from the owner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
