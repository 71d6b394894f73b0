package application

import (
	"context"
	"io"

	"webcam-transfer/capture/internal/domain"
)

// Capturer аппаратный источник кадров (камера или экран)
type Capturer interface {
	// StartCapture начинает выдачу кадров с заданными параметрами
	StartCapture(width, height, fps int) error

	// StopCapture останавливает выдачу кадров
	StopCapture() error

	// Dispose освобождает нативные ресурсы захватчика
	Dispose() error
}

// CameraSwitcher реализуется захватчиками, умеющими переключать камеру на лету.
// done вызывается асинхронно из контекста драйвера.
type CameraSwitcher interface {
	SwitchCamera(deviceID string, done func(err error))
}

// CameraEventSource реализуется захватчиками, которые сообщают о первом кадре
type CameraEventSource interface {
	SubscribeEvents(handler func(domain.CameraEvent)) (unsubscribe func())
}

// FormatNegotiator реализуется захватчиками с фиксированным собственным форматом
type FormatNegotiator interface {
	NativeSize() (domain.Size, bool)
}

// Source медиаисточник движка, в который захватчик пишет кадры
type Source interface {
	Dispose() error
}

// Sink потребитель кадров, подключенный к треку
type Sink interface {
	OnFrame(frame *domain.VideoFrame)
}

// TrackHandle исходящий трек движка
type TrackHandle interface {
	ID() string
	SetEnabled(enabled bool)
	AddSink(sink Sink)
	RemoveSink(sink Sink)
	Dispose() error
}

// CapturerSpec параметры создания захватчика
type CapturerSpec struct {
	DeviceID   string
	Screencast bool
	Source     Source
	Surface    io.Closer
}

// MediaEngine фабрика нативных объектов медиадвижка
type MediaEngine interface {
	CreateSource(screencast bool) (Source, error)
	CreateTrack(id string, source Source) (TrackHandle, error)
	CreateCapturer(spec CapturerSpec) (Capturer, error)
	CreateSurfaceHelper() (io.Closer, error)
}

// DeviceEnumerator перечисляет устройства захвата платформы
type DeviceEnumerator interface {
	// ListDeviceIDs возвращает идентификаторы в порядке перечисления
	ListDeviceIDs(ctx context.Context) ([]string, error)

	// ResolvePosition возвращает физическое расположение устройства
	ResolvePosition(ctx context.Context, id string) domain.Position
}

// PermissionChecker сообщает, разрешен ли доступ к камере
type PermissionChecker interface {
	HasCaptureAuthorization() bool
}

// NetworkSender отправитель исходящего соединения.
// SetTrack подменяет трек без пересогласования соединения.
type NetworkSender interface {
	SetTrack(track TrackHandle, preserveState bool) error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}
