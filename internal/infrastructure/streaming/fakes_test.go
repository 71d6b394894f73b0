package streaming

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"webcam-transfer/capture/internal/application"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Debug(msg string, args ...interface{}) {}

type plainTrack struct {
	id string

	mu    sync.Mutex
	sinks []application.Sink
}

func (t *plainTrack) ID() string              { return t.id }
func (t *plainTrack) SetEnabled(enabled bool) {}
func (t *plainTrack) Dispose() error          { return nil }

func (t *plainTrack) AddSink(sink application.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

func (t *plainTrack) RemoveSink(sink application.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.sinks {
		if s == sink {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

func (t *plainTrack) sinkCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sinks)
}

// localTrack дополнительно отдает трек pion
type localTrack struct {
	plainTrack
	local *webrtc.TrackLocalStaticSample
}

func (t *localTrack) TrackLocal() webrtc.TrackLocal { return t.local }

func newLocalTrack(t *testing.T, id string) *localTrack {
	t.Helper()
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}, id, "stream")
	if err != nil {
		t.Fatalf("NewTrackLocalStaticSample failed: %v", err)
	}
	return &localTrack{plainTrack: plainTrack{id: id}, local: local}
}

type wsMessage struct {
	kind int
	data []byte
}

// recordingServer принимает WebSocket и складывает сообщения в канал
type recordingServer struct {
	*httptest.Server
	messages chan wsMessage
	conns    chan *websocket.Conn
}

func newRecordingServer(t *testing.T) *recordingServer {
	t.Helper()
	rs := &recordingServer{
		messages: make(chan wsMessage, 64),
		conns:    make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		rs.conns <- conn
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			rs.messages <- wsMessage{kind: kind, data: data}
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) url() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func (rs *recordingServer) next(t *testing.T) wsMessage {
	t.Helper()
	select {
	case msg := <-rs.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
		return wsMessage{}
	}
}
