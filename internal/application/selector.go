package application

import (
	"context"
	"fmt"

	"webcam-transfer/capture/internal/domain"
)

// DeviceSelector выбирает устройство захвата по селектору.
// Список устройств запрашивается заново при каждом выборе.
type DeviceSelector struct {
	enumerator DeviceEnumerator
	logger     Logger
}

// NewDeviceSelector создает новый селектор устройств
func NewDeviceSelector(enumerator DeviceEnumerator, logger Logger) *DeviceSelector {
	return &DeviceSelector{
		enumerator: enumerator,
		logger:     logger,
	}
}

// Find ищет устройство по идентификатору, затем по расположению.
// При fallback и отсутствии совпадения возвращает первое устройство.
func (s *DeviceSelector) Find(ctx context.Context, sel domain.Selector, fallback bool) (domain.CaptureDevice, error) {
	ids, err := s.enumerator.ListDeviceIDs(ctx)
	if err != nil {
		return domain.CaptureDevice{}, fmt.Errorf("не удалось получить список устройств: %w", err)
	}

	if sel.DeviceID != "" {
		for _, id := range ids {
			if id == sel.DeviceID {
				return s.describe(ctx, id), nil
			}
		}
	}

	if sel.Position != domain.PositionUnspecified {
		for _, id := range ids {
			if s.enumerator.ResolvePosition(ctx, id) == sel.Position {
				return s.describe(ctx, id), nil
			}
		}
	}

	if fallback && len(ids) > 0 {
		return s.describe(ctx, ids[0]), nil
	}

	return domain.CaptureDevice{}, ErrDeviceNotFound
}

// Next возвращает устройство, следующее за текущим по кругу
func (s *DeviceSelector) Next(ctx context.Context, currentID string) (domain.CaptureDevice, error) {
	ids, err := s.enumerator.ListDeviceIDs(ctx)
	if err != nil {
		return domain.CaptureDevice{}, fmt.Errorf("не удалось получить список устройств: %w", err)
	}
	if len(ids) < 2 {
		return domain.CaptureDevice{}, ErrNoAlternateDevice
	}

	current := -1
	for i, id := range ids {
		if id == currentID {
			current = i
			break
		}
	}

	return s.describe(ctx, ids[(current+1)%len(ids)]), nil
}

// Resolve реализует полный алгоритм выбора цели переключения:
// точное совпадение по селектору, иначе следующее устройство по кругу.
func (s *DeviceSelector) Resolve(ctx context.Context, currentID string, sel domain.Selector) (domain.CaptureDevice, error) {
	if !sel.IsZero() {
		device, err := s.Find(ctx, sel, false)
		if err == nil {
			return device, nil
		}
		s.logger.Debug("Устройство по селектору %+v не найдено: %v", sel, err)
	}

	device, err := s.Next(ctx, currentID)
	if err != nil {
		s.logger.Warn("Не удалось выбрать следующее устройство: %v", err)
		return domain.CaptureDevice{}, err
	}
	return device, nil
}

func (s *DeviceSelector) describe(ctx context.Context, id string) domain.CaptureDevice {
	return domain.CaptureDevice{
		ID:       id,
		Name:     id,
		Position: s.enumerator.ResolvePosition(ctx, id),
	}
}
