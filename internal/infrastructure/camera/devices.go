package camera

import (
	"context"
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"

	"webcam-transfer/capture/internal/domain"
)

var positionHints = []struct {
	position domain.Position
	words    []string
}{
	{domain.PositionBack, []string{"back", "rear", "environment"}},
	{domain.PositionFront, []string{"front", "user", "facetime", "integrated"}},
	{domain.PositionExternal, []string{"usb", "external"}},
}

// PositionFromLabel определяет расположение камеры по ее названию
func PositionFromLabel(label string) domain.Position {
	label = strings.ToLower(label)
	for _, hint := range positionHints {
		for _, word := range hint.words {
			if strings.Contains(label, word) {
				return hint.position
			}
		}
	}
	return domain.PositionUnknown
}

// cameras возвращает видеоустройства в порядке перечисления, без экранов
func (e *Engine) cameras() []mediadevices.MediaDeviceInfo {
	var result []mediadevices.MediaDeviceInfo
	for _, device := range e.enumerate() {
		if device.Kind != mediadevices.VideoInput || device.DeviceType == driver.Screen {
			continue
		}
		result = append(result, device)
	}
	return result
}

// ListDeviceIDs возвращает идентификаторы камер
func (e *Engine) ListDeviceIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cameras := e.cameras()
	ids := make([]string, 0, len(cameras))
	for _, device := range cameras {
		ids = append(ids, device.DeviceID)
	}
	return ids, nil
}

// ResolvePosition возвращает расположение камеры по идентификатору
func (e *Engine) ResolvePosition(ctx context.Context, id string) domain.Position {
	for _, device := range e.cameras() {
		if device.DeviceID == id {
			return PositionFromLabel(device.Label)
		}
	}
	return domain.PositionUnknown
}

// ListDevices возвращает список камер с названиями
func (e *Engine) ListDevices(ctx context.Context) ([]domain.CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cameras := e.cameras()
	result := make([]domain.CaptureDevice, 0, len(cameras))
	for _, device := range cameras {
		result = append(result, domain.CaptureDevice{
			ID:       device.DeviceID,
			Name:     device.Label,
			Position: PositionFromLabel(device.Label),
		})
	}
	return result, nil
}
