package camera

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

const defaultFrameDuration = time.Second / 30

// Track исходящий трек: раздает кадры источника потребителям
// и пишет их в локальный трек WebRTC
type Track struct {
	id     string
	source *FrameSource
	local  *webrtc.TrackLocalStaticSample
	logger application.Logger

	mu        sync.Mutex
	enabled   bool
	disposed  bool
	sinks     []application.Sink
	lastFrame time.Time
}

// NewTrack создает трек и привязывает его к источнику
func NewTrack(id, streamID string, source *FrameSource, logger application.Logger) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
		id,
		streamID,
	)
	if err != nil {
		return nil, err
	}

	t := &Track{
		id:      id,
		source:  source,
		local:   local,
		logger:  logger,
		enabled: true,
	}
	source.attach(t)
	return t, nil
}

// ID возвращает идентификатор трека
func (t *Track) ID() string {
	return t.id
}

// TrackLocal возвращает трек для привязки к RTPSender
func (t *Track) TrackLocal() webrtc.TrackLocal {
	return t.local
}

// SetEnabled включает или выключает выдачу кадров
func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Enabled сообщает, включен ли трек
func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// AddSink подключает потребителя кадров
func (t *Track) AddSink(sink application.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	for _, s := range t.sinks {
		if s == sink {
			return
		}
	}
	t.sinks = append(t.sinks, sink)
}

// RemoveSink отключает потребителя кадров
func (t *Track) RemoveSink(sink application.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.sinks {
		if s == sink {
			t.sinks = append(t.sinks[:i], t.sinks[i+1:]...)
			return
		}
	}
}

// Sinks возвращает подключенных потребителей
func (t *Track) Sinks() []application.Sink {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]application.Sink, len(t.sinks))
	copy(out, t.sinks)
	return out
}

// Dispose отвязывает трек от источника. Повторный вызов ничего не делает.
func (t *Track) Dispose() error {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return nil
	}
	t.disposed = true
	t.enabled = false
	t.sinks = nil
	t.mu.Unlock()

	t.source.detach(t)
	t.logger.Debug("Трек освобожден: %s", t.id)
	return nil
}

func (t *Track) deliver(frame *domain.VideoFrame) {
	t.mu.Lock()
	if !t.enabled || t.disposed {
		t.mu.Unlock()
		return
	}
	sinks := make([]application.Sink, len(t.sinks))
	copy(sinks, t.sinks)

	now := time.Now()
	duration := defaultFrameDuration
	if !t.lastFrame.IsZero() {
		duration = now.Sub(t.lastFrame)
	}
	t.lastFrame = now
	t.mu.Unlock()

	for _, sink := range sinks {
		sink.OnFrame(frame)
	}

	if err := t.local.WriteSample(media.Sample{Data: frame.Data, Duration: duration}); err != nil {
		t.logger.Debug("Ошибка записи сэмпла в трек %s: %v", t.id, err)
	}
}
