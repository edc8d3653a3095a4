package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// DefaultSampleRate is used when the configured rate is unset.
	DefaultSampleRate = 16000

	frameBytes    = 640 // 20ms @ 16kHz mono s16
	tailFlushWait = 250 * time.Millisecond
)

// framer cuts an arbitrary byte stream into size-byte frames.
type framer struct {
	size int
	buf  []byte
}

// push appends b and returns every complete frame now available.
func (f *framer) push(b []byte) [][]byte {
	f.buf = append(f.buf, b...)
	var frames [][]byte
	for len(f.buf) >= f.size {
		frames = append(frames, append([]byte(nil), f.buf[:f.size]...))
		f.buf = f.buf[f.size:]
	}
	return frames
}

// rest returns and clears the partial frame.
func (f *framer) rest() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	tail := append([]byte(nil), f.buf...)
	f.buf = nil
	return tail
}

// Capture streams fixed-size PCM frames from one selected Pulse source.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	out  chan []byte
	done chan struct{}

	mu      sync.Mutex
	frames  framer
	stopped bool
	unwatch func() bool
	writers sync.WaitGroup
}

func newCapture(device Device, buffered int) *Capture {
	return &Capture{
		device: device,
		out:    make(chan []byte, buffered),
		done:   make(chan struct{}),
		frames: framer{size: frameBytes},
	}
}

// StartCapture opens a mono s16 record stream at sampleRate. Cancelling ctx
// stops the capture.
func StartCapture(ctx context.Context, selected Device, sampleRate int) (*Capture, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected, 128)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.handlePCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName("voxdrop recording"),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	unwatch := context.AfterFunc(ctx, c.Close)
	c.mu.Lock()
	c.unwatch = unwatch
	c.mu.Unlock()
	return c, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// DeviceName prefers the human description over the source id.
func (c *Capture) DeviceName() string {
	if strings.TrimSpace(c.device.Description) != "" {
		return c.device.Description
	}
	return c.device.ID
}

// Chunks delivers PCM frames; it is closed once Stop has flushed the tail.
func (c *Capture) Chunks() <-chan []byte {
	return c.out
}

// Stop halts the stream and closes Chunks. The partial trailing frame is
// delivered unless the reader stops draining for tailFlushWait.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	unwatch := c.unwatch
	c.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.writers.Wait()

	c.mu.Lock()
	tail := c.frames.rest()
	c.mu.Unlock()

	if tail != nil {
		select {
		case c.out <- tail:
		case <-time.After(tailFlushWait):
		}
	}
	close(c.out)
	return nil
}

// Close stops the capture, ignoring the result.
func (c *Capture) Close() {
	_ = c.Stop()
}

// handlePCM is the Pulse record callback.
func (c *Capture) handlePCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Registered under mu so Stop's Wait cannot miss this writer.
	c.writers.Add(1)
	frames := c.frames.push(buffer)
	c.mu.Unlock()
	defer c.writers.Done()

	for _, frame := range frames {
		select {
		case <-c.done:
			return 0, io.EOF
		case c.out <- frame:
		}
	}
	return len(buffer), nil
}

// PulseSource opens capture streams against the configured input preferences.
type PulseSource struct {
	Input      string
	Fallback   string
	SampleRate int
}

// Open resolves the input device and starts capture. Failures the user can fix
// by granting access or unmuting wrap ErrAccessDenied.
func (s PulseSource) Open(ctx context.Context) (*Capture, error) {
	selection, err := SelectDevice(ctx, s.Input, s.Fallback)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	capture, err := StartCapture(ctx, selection.Device, s.SampleRate)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	return capture, nil
}

func classifyOpenError(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrAccessDenied):
		return err
	case errors.Is(err, ErrDeviceMuted),
		errors.Is(err, os.ErrPermission),
		strings.Contains(strings.ToLower(err.Error()), "access denied"):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	default:
		return err
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
