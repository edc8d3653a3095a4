package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rbright/voxdrop/internal/indicator"
)

type fakeStream struct {
	chunks    chan []byte
	tail      []byte
	stopCalls atomic.Int32
	once      sync.Once
}

func newFakeStream(chunks ...[]byte) *fakeStream {
	s := &fakeStream{chunks: make(chan []byte, len(chunks)+1)}
	for _, chunk := range chunks {
		s.chunks <- chunk
	}
	return s
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) DeviceName() string    { return "test mic" }

func (s *fakeStream) Stop() error {
	s.stopCalls.Add(1)
	s.once.Do(func() {
		if len(s.tail) > 0 {
			s.chunks <- s.tail
		}
		close(s.chunks)
	})
	return nil
}

// fakeSource hands out queued streams, or err when set.
type fakeSource struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	opens   int
}

func (f *fakeSource) Open(context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.streams) == 0 {
		return newFakeStream(), nil
	}
	next := f.streams[0]
	f.streams = f.streams[1:]
	return next, nil
}

type fakeEncoder struct{ err error }

func (f fakeEncoder) Encode(pcm []byte) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return append([]byte("RIFF"), pcm...), "audio/wav", nil
}

type uploadCall struct {
	filename string
	mimeType string
	data     []byte
}

type fakeBackend struct {
	mu           sync.Mutex
	uploadErr    error
	extractErr   error
	uploads      []uploadCall
	extracts     []string
	extractGate  chan struct{}
	extractEnter chan struct{}
}

func (f *fakeBackend) UploadAudio(_ context.Context, filename string, mimeType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploadCall{filename: filename, mimeType: mimeType, data: append([]byte(nil), data...)})
	return f.uploadErr
}

func (f *fakeBackend) ExtractAudio(_ context.Context, url string) error {
	f.mu.Lock()
	f.extracts = append(f.extracts, url)
	gate, enter, err := f.extractGate, f.extractEnter, f.extractErr
	f.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeBackend) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeBackend) extractCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.extracts)
}

type notice struct {
	level indicator.Level
	text  string
}

type fakeNotifier struct {
	mu         sync.Mutex
	notices    []notice
	recordings int
	stops      int
	hides      int
}

func (f *fakeNotifier) ShowRecording(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings++
}

func (f *fakeNotifier) CueStop(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeNotifier) Hide(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
}

func (f *fakeNotifier) Notice(_ context.Context, level indicator.Level, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{level: level, text: text})
}

func (f *fakeNotifier) all() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notice(nil), f.notices...)
}

type sinkCounter struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkCounter) refresh(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *sinkCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type harness struct {
	ctrl     *Controller
	source   *fakeSource
	backend  *fakeBackend
	notifier *fakeNotifier
	sink     *sinkCounter
}

func newHarness(streams ...*fakeStream) *harness {
	h := &harness{
		source:   &fakeSource{streams: streams},
		backend:  &fakeBackend{},
		notifier: &fakeNotifier{},
		sink:     &sinkCounter{},
	}
	h.ctrl = NewController(nil, Deps{
		Source:   h.source,
		Encoder:  fakeEncoder{},
		Backend:  h.backend,
		Notifier: h.notifier,
		Refresh:  h.sink.refresh,
	})
	return h
}
