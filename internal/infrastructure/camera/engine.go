package camera

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/x264"

	"webcam-transfer/capture/internal/application"
)

// Options параметры медиадвижка
type Options struct {
	BitRate    int // битрейт H.264 в bps
	BufferSize int // размер буфера чтения кадра
}

// Engine медиадвижок поверх pion/mediadevices.
// Реализует application.MediaEngine, DeviceEnumerator и PermissionChecker.
type Engine struct {
	open       Opener
	enumerate  func() []mediadevices.MediaDeviceInfo
	videoGlob  string
	bufferSize int
	streamID   string
	logger     application.Logger
}

// NewEngine создает движок с кодеком H.264 (x264)
func NewEngine(opts Options, logger application.Logger) (*Engine, error) {
	x264Params, err := x264.NewParams()
	if err != nil {
		return nil, fmt.Errorf("ошибка создания параметров x264: %w", err)
	}
	x264Params.BitRate = opts.BitRate        // битрейт в bps
	x264Params.Preset = x264.PresetUltrafast // Использование самого быстрого пресета
	x264Params.KeyFrameInterval = 60         // Keyframe каждые 2 секунды при 30 fps

	codec := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&x264Params),
	)

	return newEngine(mediaDevicesOpener(codec, "h264", logger), mediadevices.EnumerateDevices, opts.BufferSize, logger), nil
}

func newEngine(open Opener, enumerate func() []mediadevices.MediaDeviceInfo, bufferSize int, logger application.Logger) *Engine {
	return &Engine{
		open:       open,
		enumerate:  enumerate,
		videoGlob:  "/dev/video*",
		bufferSize: bufferSize,
		streamID:   uuid.NewString(),
		logger:     logger,
	}
}

// CreateSource создает медиаисточник
func (e *Engine) CreateSource(screencast bool) (application.Source, error) {
	return NewFrameSource(screencast), nil
}

// CreateTrack создает трек, привязанный к источнику этого движка
func (e *Engine) CreateTrack(id string, source application.Source) (application.TrackHandle, error) {
	s, ok := source.(*FrameSource)
	if !ok {
		return nil, ErrForeignSource
	}
	return NewTrack(id, e.streamID, s, e.logger)
}

// CreateCapturer создает захватчик по параметрам конвейера
func (e *Engine) CreateCapturer(spec application.CapturerSpec) (application.Capturer, error) {
	source, ok := spec.Source.(*FrameSource)
	if !ok {
		return nil, ErrForeignSource
	}
	pool, ok := spec.Surface.(*FramePool)
	if !ok {
		return nil, fmt.Errorf("неподдерживаемый вспомогательный ресурс %T", spec.Surface)
	}
	return NewCapturer(spec.DeviceID, spec.Screencast, source, pool, e.open, e.logger), nil
}

// CreateSurfaceHelper создает пул буферов чтения конвейера
func (e *Engine) CreateSurfaceHelper() (io.Closer, error) {
	return NewFramePool(e.bufferSize), nil
}

// StreamID возвращает идентификатор медиапотока всех треков движка
func (e *Engine) StreamID() string {
	return e.streamID
}
