package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

var errUnused = errors.New("не используется в тесте")

type fakeBackend struct {
	devices []domain.CaptureDevice
}

func (b *fakeBackend) CreateSource(screencast bool) (application.Source, error) {
	return nil, errUnused
}

func (b *fakeBackend) CreateTrack(id string, source application.Source) (application.TrackHandle, error) {
	return nil, errUnused
}

func (b *fakeBackend) CreateCapturer(spec application.CapturerSpec) (application.Capturer, error) {
	return nil, errUnused
}

func (b *fakeBackend) CreateSurfaceHelper() (io.Closer, error) {
	return nil, errUnused
}

func (b *fakeBackend) ListDeviceIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, len(b.devices))
	for i, d := range b.devices {
		ids[i] = d.ID
	}
	return ids, nil
}

func (b *fakeBackend) ResolvePosition(ctx context.Context, id string) domain.Position {
	return domain.PositionUnknown
}

func (b *fakeBackend) HasCaptureAuthorization() bool { return true }

func (b *fakeBackend) ListDevices(ctx context.Context) ([]domain.CaptureDevice, error) {
	return b.devices, nil
}

func execute(t *testing.T, newEngine EngineFactory, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(newEngine)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(nil)
	for _, name := range []string{"list-devices", "stream", "serve"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("Expected subcommand %s, got %v", name, err)
		}
	}
}

func TestListDevicesCommand(t *testing.T) {
	backend := &fakeBackend{devices: []domain.CaptureDevice{
		{ID: "cam-front", Name: "FaceTime HD", Position: domain.PositionFront},
		{ID: "cam-usb", Name: "USB Camera", Position: domain.PositionExternal},
	}}
	newEngine := func(bitRate int, logger application.Logger) (MediaBackend, error) {
		return backend, nil
	}

	out, err := execute(t, newEngine, "list-devices")
	if err != nil {
		t.Fatalf("list-devices failed: %v", err)
	}
	for _, want := range []string{"[0] FaceTime HD (front) id=cam-front", "[1] USB Camera (external) id=cam-usb"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output %q", want, out)
		}
	}
}

func TestListDevicesCommand_EngineError(t *testing.T) {
	boom := errors.New("нет драйвера")
	newEngine := func(bitRate int, logger application.Logger) (MediaBackend, error) {
		return nil, boom
	}
	if _, err := execute(t, newEngine, "list-devices"); !errors.Is(err, boom) {
		t.Errorf("Expected engine error, got %v", err)
	}
}

func TestStreamCommand_InvalidFlags(t *testing.T) {
	called := false
	newEngine := func(bitRate int, logger application.Logger) (MediaBackend, error) {
		called = true
		return &fakeBackend{}, nil
	}

	for _, args := range [][]string{
		{"stream", "--width", "0"},
		{"stream", "--transport", "carrier-pigeon"},
		{"stream", "--position", "sideways"},
		{"stream", "--screencast", "--device", "cam"},
	} {
		if _, err := execute(t, newEngine, args...); err == nil {
			t.Errorf("Expected validation error for %v", args)
		}
	}
	if called {
		t.Errorf("Engine must not be created for invalid flags")
	}
}

func TestServeCommand_InvalidPort(t *testing.T) {
	if _, err := execute(t, nil, "serve", "--port", "0"); err == nil {
		t.Errorf("Expected error for port 0")
	}

	server := NewServerCommand()
	server.SetArgs([]string{"--port", "70000", "--debug"})
	server.SetOut(io.Discard)
	server.SetErr(io.Discard)
	if err := server.Execute(); err == nil {
		t.Errorf("Expected error for port 70000")
	}
}
