package application

import (
	"errors"
	"fmt"

	"webcam-transfer/capture/internal/domain"
)

var (
	// ErrNotAuthorized доступ к камере не предоставлен
	ErrNotAuthorized = errors.New("нет разрешения на захват видео")

	ErrDeviceNotFound    = errors.New("устройство не найдено")
	ErrNoAlternateDevice = errors.New("нет другого устройства для переключения")
	ErrSwitchUnsupported = errors.New("захватчик не поддерживает переключение камеры")
	ErrDisposed          = errors.New("трек уже освобожден")
	ErrNoActivePipeline  = errors.New("нет активного конвейера захвата")
	ErrAlreadyRegistered = errors.New("ресурс для этого ключа уже зарегистрирован")
	ErrRetiredKey        = errors.New("ключ уже выведен из обращения")
	ErrNoCaptureDevices  = errors.New("нет доступных устройств захвата")
	ErrNoActiveCapture   = errors.New("нет активного захвата")
)

// ConstructionError ошибка построения нового конвейера.
// Старый конвейер к этому моменту уже разобран.
type ConstructionError struct {
	Config domain.TrackConfiguration
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("не удалось построить конвейер (%s): %v", e.Config, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// SwitchError асинхронный отказ устройства при переключении камеры
type SwitchError struct {
	DeviceID string
	Err      error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("переключение на %s не удалось: %v", e.DeviceID, e.Err)
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}
