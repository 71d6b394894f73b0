package camera

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/mediadevices"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

var errBoom = errors.New("boom")

const waitTimeout = 2 * time.Second

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}

type fakeStream struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	onEnded func(error)
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	select {
	case frame, ok := <-s.frames:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, frame), nil
	case <-s.closed:
		return 0, io.ErrClosedPipe
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) OnEnded(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = handler
}

func (s *fakeStream) end(err error) {
	s.mu.Lock()
	handler := s.onEnded
	s.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeOpener struct {
	mu       sync.Mutex
	requests []OpenRequest
	streams  []*fakeStream
	fail     map[string]error
}

func (o *fakeOpener) open(req OpenRequest) (Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if err := o.fail[req.DeviceID]; err != nil {
		return nil, err
	}
	s := newFakeStream()
	o.streams = append(o.streams, s)
	return s, nil
}

func (o *fakeOpener) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.streams) {
		t.Fatalf("Expected stream #%d to be opened, got %d streams", i, len(o.streams))
	}
	return o.streams[i]
}

func (o *fakeOpener) lastRequest() OpenRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests[len(o.requests)-1]
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

type recordingSink struct {
	frames chan *domain.VideoFrame
}

func newRecordingSink() *recordingSink {
	return &recordingSink{frames: make(chan *domain.VideoFrame, 16)}
}

func (s *recordingSink) OnFrame(frame *domain.VideoFrame) {
	s.frames <- frame
}

func (s *recordingSink) next(t *testing.T) *domain.VideoFrame {
	t.Helper()
	select {
	case frame := <-s.frames:
		return frame
	case <-time.After(waitTimeout):
		t.Fatalf("Timed out waiting for a frame")
		return nil
	}
}

func (s *recordingSink) empty() bool {
	return len(s.frames) == 0
}

func waitEvent(t *testing.T, events <-chan domain.CameraEvent) domain.CameraEvent {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(waitTimeout):
		t.Fatalf("Timed out waiting for a camera event")
		return 0
	}
}

type pipeline struct {
	opener   *fakeOpener
	engine   *Engine
	source   *FrameSource
	pool     *FramePool
	capturer *Capturer
	track    *Track
	events   chan domain.CameraEvent
}

func newPipeline(t *testing.T, deviceID string) *pipeline {
	t.Helper()

	p := &pipeline{
		opener: &fakeOpener{fail: make(map[string]error)},
		events: make(chan domain.CameraEvent, 16),
	}
	p.engine = newEngine(p.opener.open, func() []mediadevices.MediaDeviceInfo { return nil }, 64, nopLogger{})

	source, err := p.engine.CreateSource(false)
	if err != nil {
		t.Fatalf("CreateSource failed: %v", err)
	}
	surface, err := p.engine.CreateSurfaceHelper()
	if err != nil {
		t.Fatalf("CreateSurfaceHelper failed: %v", err)
	}
	capturer, err := p.engine.CreateCapturer(application.CapturerSpec{DeviceID: deviceID, Source: source, Surface: surface})
	if err != nil {
		t.Fatalf("CreateCapturer failed: %v", err)
	}
	track, err := p.engine.CreateTrack("track-1", source)
	if err != nil {
		t.Fatalf("CreateTrack failed: %v", err)
	}

	p.source = source.(*FrameSource)
	p.pool = surface.(*FramePool)
	p.capturer = capturer.(*Capturer)
	p.track = track.(*Track)
	p.capturer.SubscribeEvents(func(e domain.CameraEvent) { p.events <- e })

	t.Cleanup(func() { p.capturer.Dispose() })
	return p
}
