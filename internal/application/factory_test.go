package application

import (
	"errors"
	"testing"

	"webcam-transfer/capture/internal/domain"
)

type brokenCapturerEngine struct {
	fakeEngine
}

func (e *brokenCapturerEngine) CreateCapturer(spec CapturerSpec) (Capturer, error) {
	return nil, errBoom
}

func TestPipelineFactory_Build(t *testing.T) {
	engine := &fakeEngine{}
	registry := NewResourceRegistry(&testLogger{})
	f := NewPipelineFactory(engine, &fakePermissions{}, registry, &testLogger{})

	p, config, err := f.Build(cameraConfig("front-cam", 640, 480, 30))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Capturer == nil || p.Source == nil || p.Track == nil {
		t.Fatalf("Expected a complete pipeline, got %+v", p)
	}
	if !registry.Has(p.Track.ID()) {
		t.Errorf("Expected surface registered under track id %s", p.Track.ID())
	}
	if config.DeviceID != "front-cam" {
		t.Errorf("Expected configuration preserved, got %s", config)
	}
	if engine.base(0).deviceID != "front-cam" {
		t.Errorf("Expected capturer for front-cam, got %s", engine.base(0).deviceID)
	}
}

func TestPipelineFactory_UniqueTrackIDs(t *testing.T) {
	registry := NewResourceRegistry(&testLogger{})
	f := NewPipelineFactory(&fakeEngine{}, &fakePermissions{}, registry, &testLogger{})

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		p, _, err := f.Build(cameraConfig("front-cam", 640, 480, 30))
		if err != nil {
			t.Fatalf("Build #%d failed: %v", i, err)
		}
		if seen[p.Track.ID()] {
			t.Fatalf("Duplicate track id %s", p.Track.ID())
		}
		seen[p.Track.ID()] = true
	}
	if registry.Live() != 5 {
		t.Errorf("Expected 5 live entries, got %d", registry.Live())
	}
}

func TestPipelineFactory_Unauthorized(t *testing.T) {
	engine := &fakeEngine{}
	f := NewPipelineFactory(engine, &fakePermissions{denied: true}, NewResourceRegistry(&testLogger{}), &testLogger{})

	_, _, err := f.Build(cameraConfig("front-cam", 640, 480, 30))
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}
	if len(engine.sources) != 0 || len(engine.surfaces) != 0 {
		t.Errorf("Expected nothing constructed before authorization")
	}
}

func TestPipelineFactory_ScreencastSkipsPermission(t *testing.T) {
	engine := &fakeEngine{}
	f := NewPipelineFactory(engine, &fakePermissions{denied: true}, NewResourceRegistry(&testLogger{}), &testLogger{})

	_, _, err := f.Build(domain.TrackConfiguration{Screencast: true, Width: 1280, Height: 720, MaxFrameRate: 15})
	if err != nil {
		t.Fatalf("Expected screencast to build without camera permission, got %v", err)
	}
	if !engine.source(0).screencast {
		t.Errorf("Expected a screencast source")
	}
}

func TestPipelineFactory_PartialFailureCleansUp(t *testing.T) {
	engine := &brokenCapturerEngine{}
	registry := NewResourceRegistry(&testLogger{})
	f := NewPipelineFactory(engine, &fakePermissions{}, registry, &testLogger{})

	_, _, err := f.Build(cameraConfig("front-cam", 640, 480, 30))
	if !errors.Is(err, errBoom) {
		t.Fatalf("Expected capturer error, got %v", err)
	}
	if engine.source(0).disposes != 1 {
		t.Errorf("Expected source disposed after failure")
	}
	if engine.surface(0).closeCount() != 1 {
		t.Errorf("Expected surface closed after failure")
	}
	if registry.Live() != 0 {
		t.Errorf("Expected nothing registered")
	}
}

func TestPipelineFactory_TrackFailureDisposesCapturer(t *testing.T) {
	engine := &fakeEngine{failTrack: errBoom}
	f := NewPipelineFactory(engine, &fakePermissions{}, NewResourceRegistry(&testLogger{}), &testLogger{})

	if _, _, err := f.Build(cameraConfig("front-cam", 640, 480, 30)); !errors.Is(err, errBoom) {
		t.Fatalf("Expected track error, got %v", err)
	}
	if _, _, disposes := engine.base(0).counts(); disposes != 1 {
		t.Errorf("Expected capturer disposed once, got %d", disposes)
	}
}
