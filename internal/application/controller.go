package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"webcam-transfer/capture/internal/domain"
)

// ControllerDeps внешние зависимости контроллера
type ControllerDeps struct {
	Engine      MediaEngine
	Enumerator  DeviceEnumerator
	Permissions PermissionChecker
	Registry    *ResourceRegistry
	Logger      Logger
}

// LifecycleController управляет конвейером захвата одного логического трека:
// запуск, остановка, горячая замена устройства и освобождение ресурсов.
//
// Управляющие операции не реентерабельны и вызываются из одного контекста.
// Подтверждения от устройства приходят асинхронно и синхронизируются
// через координатор переключения.
type LifecycleController struct {
	factory   *PipelineFactory
	selector  *DeviceSelector
	registry  *ResourceRegistry
	renderers *RendererSet
	config    *configStore
	switcher  *switchCoordinator
	logger    Logger

	mu       sync.Mutex
	pipeline *Pipeline
	retired  TrackHandle // трек конвейера, замена которого не удалась
	sender   NetworkSender
	disposed bool
}

// NewLifecycleController строит первый конвейер для конфигурации.
// Для камеры без идентификатора устройства выбирается первое доступное.
func NewLifecycleController(ctx context.Context, deps ControllerDeps, config domain.TrackConfiguration) (*LifecycleController, error) {
	if deps.Registry == nil {
		deps.Registry = NewResourceRegistry(deps.Logger)
	}

	c := &LifecycleController{
		factory:   NewPipelineFactory(deps.Engine, deps.Permissions, deps.Registry, deps.Logger),
		selector:  NewDeviceSelector(deps.Enumerator, deps.Logger),
		registry:  deps.Registry,
		renderers: NewRendererSet(),
		logger:    deps.Logger,
	}

	if err := c.factory.Authorize(config); err != nil {
		return nil, err
	}

	config, err := c.resolveDevice(ctx, config)
	if err != nil {
		return nil, err
	}

	pipeline, config, err := c.factory.Build(config)
	if err != nil {
		return nil, err
	}

	c.pipeline = pipeline
	c.config = newConfigStore(config)
	c.switcher = newSwitchCoordinator(c.isLive, c.commitDevice, deps.Logger)

	c.logger.Info("Трек создан: %s", config)
	return c, nil
}

// Configuration возвращает опубликованную конфигурацию
func (c *LifecycleController) Configuration() domain.TrackConfiguration {
	return c.config.Load()
}

// Watch подписывает fn на каждую зафиксированную смену конфигурации
func (c *LifecycleController) Watch(fn func(domain.TrackConfiguration)) (cancel func()) {
	return c.config.Watch(fn)
}

// SwitchState возвращает состояние координатора переключения
func (c *LifecycleController) SwitchState() SwitchState {
	return c.switcher.State()
}

// Pipeline возвращает активный конвейер или nil
func (c *LifecycleController) Pipeline() *Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline
}

// Renderers возвращает подключенных потребителей в порядке добавления
func (c *LifecycleController) Renderers() []Sink {
	return c.renderers.Sinks()
}

// StartCapture запускает выдачу кадров активным захватчиком
func (c *LifecycleController) StartCapture() error {
	p, err := c.active()
	if err != nil {
		return err
	}

	config := c.config.Load()
	c.logger.Info("Запуск захвата: %dx%d, %d fps", config.Width, config.Height, config.MaxFrameRate)
	return p.Capturer.StartCapture(config.Width, config.Height, config.MaxFrameRate)
}

// StopCapture останавливает выдачу кадров. Безопасно вызывать без активного захвата.
func (c *LifecycleController) StopCapture() error {
	p := c.Pipeline()
	if p == nil {
		return nil
	}
	return p.Capturer.StopCapture()
}

// AddRenderer подключает потребителя к активному треку
func (c *LifecycleController) AddRenderer(sink Sink) {
	if !c.renderers.Add(sink) {
		return
	}
	if p := c.Pipeline(); p != nil {
		p.Track.AddSink(sink)
	}
}

// RemoveRenderer отключает потребителя от активного трека
func (c *LifecycleController) RemoveRenderer(sink Sink) {
	if !c.renderers.Remove(sink) {
		return
	}
	if p := c.Pipeline(); p != nil {
		p.Track.RemoveSink(sink)
	}
}

// AttachSender привязывает исходящий отправитель к активному треку
func (c *LifecycleController) AttachSender(sender NetworkSender) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.sender = sender
	p := c.pipeline
	c.mu.Unlock()

	if p == nil {
		return nil
	}
	return sender.SetTrack(p.Track, false)
}

// DetachSender забывает отправителя, не трогая его состояние
func (c *LifecycleController) DetachSender() {
	c.mu.Lock()
	c.sender = nil
	c.mu.Unlock()
}

// SetDeviceID перезапускает трек с другим устройством
func (c *LifecycleController) SetDeviceID(ctx context.Context, id string) error {
	config := c.config.Load()
	return c.RestartTrack(ctx, config.WithDevice(id, domain.PositionUnspecified))
}

// SwitchCamera переключает камеру без пересоздания конвейера.
// Конфигурация фиксируется только после подтверждения устройства
// (и первого кадра, если захватчик о нем сообщает).
func (c *LifecycleController) SwitchCamera(ctx context.Context, sel domain.Selector) error {
	p, err := c.active()
	if err != nil {
		return err
	}

	// Переключение камеры доступно только при захвате с камеры
	switcher, ok := p.Capturer.(CameraSwitcher)
	if !ok || c.config.Load().Screencast {
		return ErrSwitchUnsupported
	}

	target, err := c.selector.Resolve(ctx, c.config.Load().DeviceID, sel)
	if err != nil {
		c.logger.Warn("Переключение камеры отменено: нет целевого устройства")
		return nil
	}

	c.logger.Info("Переключение камеры на %s (%s)", target.ID, target.Position)
	c.switcher.request(p, switcher, target)
	return nil
}

// RestartTrack заменяет конвейер на новый с указанной конфигурацией.
//
// Старый конвейер разбирается до построения нового. Если построение
// не удалось, контроллер остается без активного конвейера и ошибка
// возвращается как *ConstructionError; вызывающий должен повторить RestartTrack.
func (c *LifecycleController) RestartTrack(ctx context.Context, config domain.TrackConfiguration) error {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return ErrDisposed
	}

	config, err := c.resolveDevice(ctx, config)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	old := c.pipeline
	oldTrack := c.retired
	c.pipeline = nil
	c.retired = nil
	c.mu.Unlock()

	c.switcher.cancel()

	if old != nil {
		oldTrack = old.Track
		c.teardown(old)
	}

	pipeline, config, err := c.factory.Build(config)
	if err != nil {
		c.mu.Lock()
		c.retired = oldTrack
		c.mu.Unlock()
		c.logger.Error("Не удалось перезапустить трек: %v", err)
		return &ConstructionError{Config: config, Err: err}
	}

	c.renderers.Migrate(oldTrack, pipeline.Track)

	c.mu.Lock()
	c.pipeline = pipeline
	sender := c.sender
	c.mu.Unlock()
	c.config.Swap(config)

	var result *multierror.Error
	if err := pipeline.Capturer.StartCapture(config.Width, config.Height, config.MaxFrameRate); err != nil {
		result = multierror.Append(result, fmt.Errorf("запуск захвата: %w", err))
	}

	if sender != nil {
		if err := sender.SetTrack(pipeline.Track, true); err != nil {
			result = multierror.Append(result, fmt.Errorf("привязка отправителя к треку %s: %w", pipeline.Track.ID(), err))
		}
	}

	if oldTrack != nil {
		if err := oldTrack.Dispose(); err != nil {
			c.logger.Error("Ошибка освобождения старого трека: %v", err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		c.logger.Error("Трек перезапущен с ошибками: %v", err)
		return err
	}

	c.logger.Info("Трек перезапущен: %s", config)
	return nil
}

// resolveDevice выбирает устройство до разборки старого конвейера
func (c *LifecycleController) resolveDevice(ctx context.Context, config domain.TrackConfiguration) (domain.TrackConfiguration, error) {
	if config.Screencast {
		return config, nil
	}

	if config.DeviceID == "" {
		device, err := c.selector.Find(ctx, domain.Selector{Position: config.Position}, true)
		if err != nil {
			if errors.Is(err, ErrDeviceNotFound) {
				return config, ErrNoCaptureDevices
			}
			return config, err
		}
		return config.WithDevice(device.ID, device.Position), nil
	}

	// Явно заданное устройство должно присутствовать в списке
	device, err := c.selector.Find(ctx, domain.Selector{DeviceID: config.DeviceID}, false)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return config, fmt.Errorf("%w: %s", ErrDeviceNotFound, config.DeviceID)
		}
		return config, err
	}
	if config.Position == domain.PositionUnspecified {
		config.Position = device.Position
	}
	return config, nil
}

// Dispose окончательно освобождает трек. Все шаги выполняются даже при ошибках;
// ошибки только логируются. Повторный вызов ничего не делает.
func (c *LifecycleController) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	p := c.pipeline
	retired := c.retired
	c.pipeline = nil
	c.retired = nil
	c.sender = nil
	c.mu.Unlock()

	c.switcher.cancel()

	if retired != nil {
		if err := guard("освобождение старого трека", retired.Dispose); err != nil {
			c.logger.Error("%v", err)
		}
	}
	if p == nil {
		return
	}

	var result *multierror.Error
	result = multierror.Append(result, c.release(p)...)
	result = multierror.Append(result, guard("освобождение трека", p.Track.Dispose))

	if err := result.ErrorOrNil(); err != nil {
		c.logger.Error("Ошибки при освобождении трека: %v", err)
	}
}

// teardown разбирает вытесненный конвейер: шаги 2-4 перезапуска
func (c *LifecycleController) teardown(p *Pipeline) {
	var result *multierror.Error
	result = multierror.Append(result, c.release(p)...)
	if err := result.ErrorOrNil(); err != nil {
		c.logger.Error("Ошибки при разборе старого конвейера: %v", err)
	}
}

// release останавливает и освобождает захватчик и источник, выключает трек
// и закрывает вспомогательный ресурс. Каждый шаг выполняется независимо.
func (c *LifecycleController) release(p *Pipeline) []error {
	return []error{
		guard("остановка захвата", p.Capturer.StopCapture),
		guard("освобождение захватчика", p.Capturer.Dispose),
		guard("освобождение источника", p.Source.Dispose),
		guard("выключение трека", func() error {
			p.Track.SetEnabled(false)
			return nil
		}),
		guard("освобождение ресурса", func() error {
			return c.registry.Release(p.Track.ID())
		}),
	}
}

func (c *LifecycleController) active() (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ErrDisposed
	}
	if c.pipeline == nil {
		return nil, ErrNoActivePipeline
	}
	return c.pipeline, nil
}

func (c *LifecycleController) isLive(p *Pipeline) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disposed && c.pipeline == p
}

func (c *LifecycleController) commitDevice(target domain.CaptureDevice) func() {
	next := c.config.Load().WithDevice(target.ID, target.Position)
	prev := c.config.current.Swap(&next)
	c.logger.Info("Камера переключена: %s -> %s", prev.DeviceID, next.DeviceID)
	return func() { c.config.notify(next) }
}

// guard выполняет шаг освобождения, превращая панику в ошибку
func guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: паника: %v", step, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}
