// Package session coordinates capture, upload, and extraction state for one owner process.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/voxdrop/internal/fsm"
)

// Clip is the single held recording.
type Clip struct {
	Data       []byte
	MIMEType   string
	Device     string
	Bytes      int
	CapturedAt time.Time
}

// Snapshot is a point-in-time copy of controller state for hosts that render it.
type Snapshot struct {
	Session    fsm.State
	Extraction fsm.ExtractionState
	HasClip    bool
	ClipBytes  int
	ClipMIME   string
	TargetURL  string
}

// activeCapture tracks the stream and its collector while recording.
type activeCapture struct {
	stream Stream
	pcm    <-chan []byte
}

// Controller owns the session, clip, extraction, and target URL state.
type Controller struct {
	logger   *slog.Logger
	source   Source
	encoder  Encoder
	backend  Backend
	notifier Notifier
	refresh  RefreshFunc
	now      func() time.Time

	// toggleMu serializes start/stop so a second toggle waits for the first.
	toggleMu sync.Mutex

	mu         sync.RWMutex
	state      fsm.State
	extraction fsm.ExtractionState
	clip       *Clip
	targetURL  string
	active     *activeCapture

	done     chan struct{}
	doneOnce sync.Once
}

// NewController constructs a controller with safe default fallbacks.
func NewController(logger *slog.Logger, deps Deps) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Source == nil {
		deps.Source = unavailableSource{}
	}
	if deps.Encoder == nil {
		deps.Encoder = rawEncoder{}
	}
	if deps.Backend == nil {
		deps.Backend = unavailableBackend{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Refresh == nil {
		deps.Refresh = func(context.Context, Event) {}
	}

	return &Controller{
		logger:     logger,
		source:     deps.Source,
		encoder:    deps.Encoder,
		backend:    deps.Backend,
		notifier:   deps.Notifier,
		refresh:    deps.Refresh,
		now:        time.Now,
		state:      fsm.StateIdle,
		extraction: fsm.ExtractionIdle,
		done:       make(chan struct{}),
	}
}

// State returns the current session state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ExtractionState returns whether an extraction request is outstanding.
func (c *Controller) ExtractionState() fsm.ExtractionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extraction
}

// HasClip reports whether a recording is held.
func (c *Controller) HasClip() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clip != nil
}

// Clip returns a copy of the held recording.
func (c *Controller) Clip() (Clip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.clip == nil {
		return Clip{}, false
	}
	out := *c.clip
	out.Data = append([]byte(nil), c.clip.Data...)
	return out, true
}

// SetTargetURL replaces the extraction target.
func (c *Controller) SetTargetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetURL = url
}

// TargetURL returns the current extraction target.
func (c *Controller) TargetURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.targetURL
}

// Snapshot returns all observable state under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Session:    c.state,
		Extraction: c.extraction,
		TargetURL:  c.targetURL,
	}
	if c.clip != nil {
		snap.HasClip = true
		snap.ClipBytes = c.clip.Bytes
		snap.ClipMIME = c.clip.MIMEType
	}
	return snap
}

// Done is closed once the owner has been asked to quit.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close stops any active capture without producing a clip.
func (c *Controller) Close() {
	c.toggleMu.Lock()
	defer c.toggleMu.Unlock()

	c.mu.Lock()
	active := c.active
	c.active = nil
	if active != nil {
		c.state = fsm.StateIdle
	}
	c.mu.Unlock()

	if active != nil {
		_ = active.stream.Stop()
		<-active.pcm
	}
}

// quit releases Done exactly once.
func (c *Controller) quit() {
	c.doneOnce.Do(func() { close(c.done) })
}

// transition applies one session FSM event.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}
