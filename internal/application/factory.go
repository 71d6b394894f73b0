package application

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"webcam-transfer/capture/internal/domain"
)

// Pipeline связка захватчика, медиаисточника и исходящего трека.
// Принадлежит ровно одному LifecycleController.
type Pipeline struct {
	Capturer Capturer
	Source   Source
	Track    TrackHandle
}

// PipelineFactory строит новые конвейеры и регистрирует их вспомогательный ресурс
type PipelineFactory struct {
	engine      MediaEngine
	permissions PermissionChecker
	registry    *ResourceRegistry
	logger      Logger
	newID       func() string
}

// NewPipelineFactory создает новую фабрику конвейеров
func NewPipelineFactory(engine MediaEngine, permissions PermissionChecker, registry *ResourceRegistry, logger Logger) *PipelineFactory {
	return &PipelineFactory{
		engine:      engine,
		permissions: permissions,
		registry:    registry,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// Authorize проверяет разрешение до начала построения конвейера камеры
func (f *PipelineFactory) Authorize(config domain.TrackConfiguration) error {
	if config.Screencast {
		return nil
	}
	if f.permissions != nil && !f.permissions.HasCaptureAuthorization() {
		return ErrNotAuthorized
	}
	return nil
}

// Build строит конвейер для уже разрешенной конфигурации.
// Возвращает конфигурацию, дополненную собственным размером захватчика.
// При ошибке все частично созданные объекты освобождаются.
func (f *PipelineFactory) Build(config domain.TrackConfiguration) (*Pipeline, domain.TrackConfiguration, error) {
	if err := f.Authorize(config); err != nil {
		return nil, config, err
	}

	source, err := f.engine.CreateSource(config.Screencast)
	if err != nil {
		return nil, config, fmt.Errorf("создание источника: %w", err)
	}

	surface, err := f.engine.CreateSurfaceHelper()
	if err != nil {
		f.discard(source, nil, nil)
		return nil, config, fmt.Errorf("создание вспомогательного ресурса: %w", err)
	}

	capturer, err := f.engine.CreateCapturer(CapturerSpec{
		DeviceID:   config.DeviceID,
		Screencast: config.Screencast,
		Source:     source,
		Surface:    surface,
	})
	if err != nil {
		f.discard(source, surface, nil)
		return nil, config, fmt.Errorf("создание захватчика: %w", err)
	}

	track, err := f.engine.CreateTrack(f.newID(), source)
	if err != nil {
		f.discard(source, surface, capturer)
		return nil, config, fmt.Errorf("создание трека: %w", err)
	}

	if err := f.registry.Register(track.ID(), surface); err != nil {
		f.discard(source, surface, capturer)
		if derr := track.Dispose(); derr != nil {
			f.logger.Error("Ошибка освобождения трека: %v", derr)
		}
		return nil, config, fmt.Errorf("регистрация ресурса трека %s: %w", track.ID(), err)
	}

	if negotiator, ok := capturer.(FormatNegotiator); ok {
		if size, ok := negotiator.NativeSize(); ok {
			config = config.WithNativeSize(size)
		}
	}

	f.logger.Debug("Конвейер построен: трек %s, %s", track.ID(), config)
	return &Pipeline{Capturer: capturer, Source: source, Track: track}, config, nil
}

func (f *PipelineFactory) discard(source Source, surface io.Closer, capturer Capturer) {
	if capturer != nil {
		if err := capturer.Dispose(); err != nil {
			f.logger.Error("Ошибка освобождения захватчика: %v", err)
		}
	}
	if source != nil {
		if err := source.Dispose(); err != nil {
			f.logger.Error("Ошибка освобождения источника: %v", err)
		}
	}
	if surface != nil {
		if err := surface.Close(); err != nil {
			f.logger.Error("Ошибка закрытия вспомогательного ресурса: %v", err)
		}
	}
}
