package domain

import "fmt"

// VideoFrame представляет кадр видео
type VideoFrame struct {
	Data   []byte // Закодированные данные кадра
	Size   int    // Размер данных в байтах
	Number int    // Номер кадра в рамках текущего захвата
}

// Position физическое расположение устройства захвата
type Position int

const (
	PositionUnspecified Position = iota // Селектор не задан
	PositionUnknown                     // Устройство не сообщает расположение
	PositionFront                       // Фронтальная камера
	PositionBack                        // Тыльная камера
	PositionExternal                    // Внешняя (USB) камера
)

func (p Position) String() string {
	switch p {
	case PositionUnspecified:
		return "unspecified"
	case PositionUnknown:
		return "unknown"
	case PositionFront:
		return "front"
	case PositionBack:
		return "back"
	case PositionExternal:
		return "external"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// ParsePosition разбирает строковое имя расположения
func ParsePosition(s string) (Position, error) {
	switch s {
	case "":
		return PositionUnspecified, nil
	case "unknown":
		return PositionUnknown, nil
	case "front":
		return PositionFront, nil
	case "back":
		return PositionBack, nil
	case "external":
		return PositionExternal, nil
	}
	return PositionUnspecified, fmt.Errorf("неизвестное расположение камеры: %q", s)
}

// CaptureDevice представляет устройство захвата видео
type CaptureDevice struct {
	ID       string   // Уникальный идентификатор устройства
	Name     string   // Человекочитаемое имя устройства
	Position Position // Физическое расположение
}

// Selector описывает, на какое устройство переключиться.
// Пустой селектор означает "следующее доступное".
type Selector struct {
	DeviceID string
	Position Position
}

// IsZero сообщает, что ни один критерий не задан
func (s Selector) IsZero() bool {
	return s.DeviceID == "" && s.Position == PositionUnspecified
}

// Size размер кадра в пикселях
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// TrackConfiguration неизменяемое описание активного захвата.
// Любое изменение создает новое значение через With* методы.
type TrackConfiguration struct {
	DeviceID     string
	Position     Position
	Width        int
	Height       int
	MaxFrameRate int
	Screencast   bool
	NativeSize   Size // Заполняется, если захватчик согласует собственный формат
}

// WithDevice возвращает копию с другим устройством
func (c TrackConfiguration) WithDevice(id string, position Position) TrackConfiguration {
	c.DeviceID = id
	c.Position = position
	return c
}

// WithCapture возвращает копию с другими параметрами захвата
func (c TrackConfiguration) WithCapture(width, height, fps int) TrackConfiguration {
	c.Width = width
	c.Height = height
	c.MaxFrameRate = fps
	return c
}

// WithNativeSize возвращает копию с размером, о котором сообщил захватчик
func (c TrackConfiguration) WithNativeSize(size Size) TrackConfiguration {
	c.NativeSize = size
	return c
}

func (c TrackConfiguration) String() string {
	kind := "camera"
	if c.Screencast {
		kind = "screen"
	}
	return fmt.Sprintf("%s %s/%s %dx%d@%d", kind, c.DeviceID, c.Position, c.Width, c.Height, c.MaxFrameRate)
}

// CameraEvent событие от аппаратного захватчика
type CameraEvent int

const (
	EventFirstFrame CameraEvent = iota + 1
	EventError
	EventDisconnected
	EventClosed
)

func (e CameraEvent) String() string {
	switch e {
	case EventFirstFrame:
		return "first-frame"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}
