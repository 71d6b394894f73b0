package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"webcam-transfer/capture/internal/domain"
)

type testLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *testLogger) Info(msg string, args ...interface{})  {}
func (l *testLogger) Debug(msg string, args ...interface{}) {}

func (l *testLogger) Warn(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(msg, args...))
}

func (l *testLogger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(msg, args...))
}

func (l *testLogger) Warnings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func (l *testLogger) Errors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

type captureCall struct {
	width, height, fps int
}

type fakeCapturer struct {
	mu           sync.Mutex
	deviceID     string
	starts       []captureCall
	stops        int
	disposes     int
	stopErr      error
	disposePanic bool
}

func (c *fakeCapturer) StartCapture(width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, captureCall{width, height, fps})
	return nil
}

func (c *fakeCapturer) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopErr
}

func (c *fakeCapturer) Dispose() error {
	c.mu.Lock()
	c.disposes++
	panicking := c.disposePanic
	c.mu.Unlock()
	if panicking {
		panic("native dispose failed")
	}
	return nil
}

func (c *fakeCapturer) counts() (starts, stops, disposes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.starts), c.stops, c.disposes
}

type switchCall struct {
	deviceID string
	done     func(error)
}

type switchingCapturer struct {
	*fakeCapturer
	switchMu sync.Mutex
	switches []switchCall
}

func (c *switchingCapturer) SwitchCamera(deviceID string, done func(error)) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.switches = append(c.switches, switchCall{deviceID: deviceID, done: done})
}

func (c *switchingCapturer) lastSwitch(t *testing.T) switchCall {
	t.Helper()
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	if len(c.switches) == 0 {
		t.Fatalf("Expected a hardware switch request, got none")
	}
	return c.switches[len(c.switches)-1]
}

func (c *switchingCapturer) switchCount() int {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return len(c.switches)
}

type eventCapturer struct {
	*switchingCapturer
	eventsMu sync.Mutex
	handlers map[int]func(domain.CameraEvent)
	nextID   int
}

func (c *eventCapturer) SubscribeEvents(handler func(domain.CameraEvent)) func() {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[int]func(domain.CameraEvent))
	}
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	return func() {
		c.eventsMu.Lock()
		defer c.eventsMu.Unlock()
		delete(c.handlers, id)
	}
}

func (c *eventCapturer) emit(event domain.CameraEvent) {
	c.eventsMu.Lock()
	handlers := make([]func(domain.CameraEvent), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.eventsMu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (c *eventCapturer) subscribers() int {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	return len(c.handlers)
}

type nativeSizeCapturer struct {
	*fakeCapturer
	size domain.Size
}

func (c *nativeSizeCapturer) NativeSize() (domain.Size, bool) {
	return c.size, true
}

type fakeSource struct {
	mu         sync.Mutex
	screencast bool
	disposes   int
	disposeErr error
}

func (s *fakeSource) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposes++
	return s.disposeErr
}

type fakeTrack struct {
	mu       sync.Mutex
	id       string
	enabled  bool
	sinks    []Sink
	disposes int
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) AddSink(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

func (t *fakeTrack) RemoveSink(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.sinks {
		if s == sink {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

func (t *fakeTrack) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposes++
	return nil
}

func (t *fakeTrack) attached() []Sink {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sink, len(t.sinks))
	copy(out, t.sinks)
	return out
}

func (t *fakeTrack) isEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

type fakeSurface struct {
	mu     sync.Mutex
	closes int
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSurface) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type capturerKind int

const (
	plainCapturer capturerKind = iota
	switchableCapturer
	firstFrameCapturer
)

type fakeEngine struct {
	mu         sync.Mutex
	kind       capturerKind
	nativeSize *domain.Size
	capturers  []Capturer
	sources    []*fakeSource
	tracks     []*fakeTrack
	surfaces   []*fakeSurface
	failTrack  error
}

func (e *fakeEngine) CreateSource(screencast bool) (Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &fakeSource{screencast: screencast}
	e.sources = append(e.sources, s)
	return s, nil
}

func (e *fakeEngine) CreateTrack(id string, source Source) (TrackHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failTrack != nil {
		return nil, e.failTrack
	}
	t := &fakeTrack{id: id, enabled: true}
	e.tracks = append(e.tracks, t)
	return t, nil
}

func (e *fakeEngine) CreateCapturer(spec CapturerSpec) (Capturer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := &fakeCapturer{deviceID: spec.DeviceID}
	var c Capturer
	switch {
	case e.nativeSize != nil:
		c = &nativeSizeCapturer{fakeCapturer: base, size: *e.nativeSize}
	case e.kind == switchableCapturer:
		c = &switchingCapturer{fakeCapturer: base}
	case e.kind == firstFrameCapturer:
		c = &eventCapturer{switchingCapturer: &switchingCapturer{fakeCapturer: base}}
	default:
		c = base
	}
	e.capturers = append(e.capturers, c)
	return c, nil
}

func (e *fakeEngine) CreateSurfaceHelper() (io.Closer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &fakeSurface{}
	e.surfaces = append(e.surfaces, s)
	return s, nil
}

func (e *fakeEngine) track(i int) *fakeTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracks[i]
}

func (e *fakeEngine) surface(i int) *fakeSurface {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surfaces[i]
}

func (e *fakeEngine) source(i int) *fakeSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sources[i]
}

func (e *fakeEngine) capturer(i int) Capturer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capturers[i]
}

func (e *fakeEngine) base(i int) *fakeCapturer {
	switch c := e.capturer(i).(type) {
	case *fakeCapturer:
		return c
	case *switchingCapturer:
		return c.fakeCapturer
	case *eventCapturer:
		return c.fakeCapturer
	case *nativeSizeCapturer:
		return c.fakeCapturer
	}
	return nil
}

type fakeEnumerator struct {
	mu      sync.Mutex
	devices []domain.CaptureDevice
	err     error
}

func newEnumerator(devices ...domain.CaptureDevice) *fakeEnumerator {
	return &fakeEnumerator{devices: devices}
}

func (e *fakeEnumerator) ListDeviceIDs(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	ids := make([]string, 0, len(e.devices))
	for _, d := range e.devices {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (e *fakeEnumerator) ResolvePosition(ctx context.Context, id string) domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.devices {
		if d.ID == id {
			return d.Position
		}
	}
	return domain.PositionUnknown
}

func (e *fakeEnumerator) ListDevices(ctx context.Context) ([]domain.CaptureDevice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.CaptureDevice(nil), e.devices...), e.err
}

type fakePermissions struct {
	mu     sync.Mutex
	denied bool
}

func (p *fakePermissions) HasCaptureAuthorization() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.denied
}

func (p *fakePermissions) set(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied = !granted
}

type senderCall struct {
	track    TrackHandle
	preserve bool
}

type fakeSender struct {
	mu    sync.Mutex
	calls []senderCall
	err   error
}

func (s *fakeSender) SetTrack(track TrackHandle, preserveState bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, senderCall{track: track, preserve: preserveState})
	return s.err
}

func (s *fakeSender) last() (senderCall, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return senderCall{}, 0
	}
	return s.calls[len(s.calls)-1], len(s.calls)
}

type namedSink struct {
	name string
}

func (s *namedSink) OnFrame(frame *domain.VideoFrame) {}

var errBoom = errors.New("boom")

var (
	frontCam = domain.CaptureDevice{ID: "front-cam", Name: "Front", Position: domain.PositionFront}
	backCam  = domain.CaptureDevice{ID: "back-cam", Name: "Back", Position: domain.PositionBack}
	usbCam   = domain.CaptureDevice{ID: "usb-cam", Name: "USB", Position: domain.PositionExternal}
)

type harness struct {
	engine      *fakeEngine
	enumerator  *fakeEnumerator
	permissions *fakePermissions
	registry    *ResourceRegistry
	logger      *testLogger
	controller  *LifecycleController
}

func newHarness(t *testing.T, kind capturerKind, config domain.TrackConfiguration, devices ...domain.CaptureDevice) *harness {
	t.Helper()

	h := &harness{
		engine:      &fakeEngine{kind: kind},
		enumerator:  newEnumerator(devices...),
		permissions: &fakePermissions{},
		logger:      &testLogger{},
	}
	h.registry = NewResourceRegistry(h.logger)

	controller, err := NewLifecycleController(context.Background(), h.deps(), config)
	if err != nil {
		t.Fatalf("NewLifecycleController failed: %v", err)
	}
	h.controller = controller
	return h
}

func (h *harness) deps() ControllerDeps {
	return ControllerDeps{
		Engine:      h.engine,
		Enumerator:  h.enumerator,
		Permissions: h.permissions,
		Registry:    h.registry,
		Logger:      h.logger,
	}
}

func cameraConfig(deviceID string, width, height, fps int) domain.TrackConfiguration {
	return domain.TrackConfiguration{DeviceID: deviceID, Width: width, Height: height, MaxFrameRate: fps}
}
