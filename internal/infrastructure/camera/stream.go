package camera

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"

	"webcam-transfer/capture/internal/application"
)

var (
	ErrCapturerClosed = errors.New("захватчик уже освобожден")
	ErrForeignSource  = errors.New("источник создан другим движком")
	ErrNoVideoTrack   = errors.New("видеотрек не обнаружен")
	ErrScreenSwitch   = errors.New("захват экрана не переключает камеры")
)

// Stream открытый поток закодированных кадров одного устройства
type Stream interface {
	io.ReadCloser

	// OnEnded вызывается, когда устройство перестает выдавать кадры
	OnEnded(handler func(err error))
}

// OpenRequest параметры открытия устройства
type OpenRequest struct {
	DeviceID   string
	Screencast bool
	Width      int
	Height     int
	FrameRate  int
}

// Opener открывает поток устройства
type Opener func(req OpenRequest) (Stream, error)

// deviceStream обертка над треком mediadevices и его ридером
type deviceStream struct {
	track  mediadevices.Track
	reader io.ReadCloser
}

func (s *deviceStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *deviceStream) Close() error {
	var result *multierror.Error
	if err := s.reader.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("закрытие ридера: %w", err))
	}
	if err := s.track.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("закрытие трека: %w", err))
	}
	return result.ErrorOrNil()
}

func (s *deviceStream) OnEnded(handler func(err error)) {
	s.track.OnEnded(handler)
}

// mediaDevicesOpener открывает устройство через GetUserMedia
// (или GetDisplayMedia для экрана) и создает ридер закодированных кадров
func mediaDevicesOpener(codec *mediadevices.CodecSelector, codecName string, logger application.Logger) Opener {
	return func(req OpenRequest) (Stream, error) {
		getMedia := mediadevices.GetUserMedia
		if req.Screencast {
			getMedia = mediadevices.GetDisplayMedia
		}

		// Задаем предпочтительные параметры, но не строгие
		constraints := mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				c.Width = prop.Int(req.Width)
				c.Height = prop.Int(req.Height)
				if req.FrameRate > 0 {
					c.FrameRate = prop.Float(req.FrameRate)
				}
				if req.DeviceID != "" {
					c.DeviceID = prop.String(req.DeviceID)
				}
			},
			Codec: codec,
		}

		mediaStream, err := getMedia(constraints)
		if err != nil {
			logger.Warn("Ошибка с исходными ограничениями: %v", err)

			// Пробуем с минимальными ограничениями
			logger.Info("Пробуем с минимальными ограничениями...")
			constraints = mediadevices.MediaStreamConstraints{
				Video: func(c *mediadevices.MediaTrackConstraints) {
					if req.DeviceID != "" {
						c.DeviceID = prop.String(req.DeviceID)
					}
				},
				Codec: codec,
			}

			mediaStream, err = getMedia(constraints)
			if err != nil {
				return nil, fmt.Errorf("не удалось получить доступ к медиа-устройству: %w", err)
			}
		}

		videoTracks := mediaStream.GetVideoTracks()
		if len(videoTracks) == 0 {
			for _, track := range mediaStream.GetTracks() {
				track.Close()
			}
			return nil, ErrNoVideoTrack
		}

		track := videoTracks[0]
		reader, err := track.NewEncodedIOReader(codecName)
		if err != nil {
			track.Close()
			return nil, fmt.Errorf("ошибка создания ридера %s: %w", codecName, err)
		}

		logger.Debug("Устройство открыто: %s, трек %s", req.DeviceID, track.ID())
		return &deviceStream{track: track, reader: reader}, nil
	}
}
