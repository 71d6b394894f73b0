package application

import (
	"context"
	"sync"

	"webcam-transfer/capture/internal/domain"
)

// DeviceLister перечисляет устройства с человекочитаемыми именами
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]domain.CaptureDevice, error)
}

// WebcamService сервис для работы с веб-камерой и стримингом
type WebcamService struct {
	deps    ControllerDeps
	devices DeviceLister
	logger  Logger

	controller *LifecycleController
	mutex      sync.Mutex
}

// NewWebcamService создает новый сервис для работы с веб-камерой
func NewWebcamService(deps ControllerDeps, devices DeviceLister) *WebcamService {
	if deps.Registry == nil {
		deps.Registry = NewResourceRegistry(deps.Logger)
	}
	return &WebcamService{
		deps:    deps,
		devices: devices,
		logger:  deps.Logger,
	}
}

// ListDevices возвращает список доступных устройств захвата
func (s *WebcamService) ListDevices(ctx context.Context) ([]domain.CaptureDevice, error) {
	devices, err := s.devices.ListDevices(ctx)
	if err != nil {
		s.logger.Error("Ошибка получения списка устройств: %v", err)
		return nil, err
	}
	return devices, nil
}

// StartCapture создает трек с указанной конфигурацией, привязывает к нему
// отправителя (если он задан) и запускает захват
func (s *WebcamService) StartCapture(ctx context.Context, config domain.TrackConfiguration, sender NetworkSender) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Если есть активный трек, освобождаем его
	if s.controller != nil {
		s.controller.Dispose()
		s.controller = nil
	}

	s.logger.Info("Открытие камеры с параметрами: %dx%d, %d fps", config.Width, config.Height, config.MaxFrameRate)

	controller, err := NewLifecycleController(ctx, s.deps, config)
	if err != nil {
		s.logger.Error("Ошибка открытия камеры: %v", err)
		return err
	}

	if sender != nil {
		if err := controller.AttachSender(sender); err != nil {
			controller.Dispose()
			return err
		}
	}

	if err := controller.StartCapture(); err != nil {
		s.logger.Error("Ошибка запуска захвата: %v", err)
		controller.Dispose()
		return err
	}

	s.controller = controller
	s.logger.Info("Используется камера: %s", controller.Configuration().DeviceID)
	return nil
}

// StopCapture останавливает захват и освобождает трек
func (s *WebcamService) StopCapture() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.controller == nil {
		return ErrNoActiveCapture
	}

	s.controller.Dispose()
	s.controller = nil
	return nil
}

// PauseCapture останавливает выдачу кадров, не освобождая трек
func (s *WebcamService) PauseCapture() error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.StopCapture()
}

// ResumeCapture возобновляет выдачу кадров
func (s *WebcamService) ResumeCapture() error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.StartCapture()
}

// SwitchCamera переключает камеру по селектору
func (s *WebcamService) SwitchCamera(ctx context.Context, sel domain.Selector) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.SwitchCamera(ctx, sel)
}

// SetDeviceID перезапускает трек на другом устройстве
func (s *WebcamService) SetDeviceID(ctx context.Context, id string) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.SetDeviceID(ctx, id)
}

// RestartTrack перезапускает трек с новыми параметрами захвата
func (s *WebcamService) RestartTrack(ctx context.Context, width, height, fps int) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.RestartTrack(ctx, c.Configuration().WithCapture(width, height, fps))
}

// Configuration возвращает текущую конфигурацию трека
func (s *WebcamService) Configuration() (domain.TrackConfiguration, error) {
	c, err := s.current()
	if err != nil {
		return domain.TrackConfiguration{}, err
	}
	return c.Configuration(), nil
}

// Controller возвращает контроллер активного трека или nil
func (s *WebcamService) Controller() *LifecycleController {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.controller
}

func (s *WebcamService) current() (*LifecycleController, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.controller == nil {
		return nil, ErrNoActiveCapture
	}
	return s.controller, nil
}
