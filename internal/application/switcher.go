package application

import (
	"sync"

	"webcam-transfer/capture/internal/domain"
)

// SwitchState состояние переключения камеры
type SwitchState int

const (
	SwitchIdle SwitchState = iota
	SwitchRequested
	SwitchPendingHardwareAck
	SwitchAwaitingFirstFrame
	SwitchCommitted
	SwitchFailed
)

func (s SwitchState) String() string {
	switch s {
	case SwitchIdle:
		return "idle"
	case SwitchRequested:
		return "requested"
	case SwitchPendingHardwareAck:
		return "pending-hardware-ack"
	case SwitchAwaitingFirstFrame:
		return "awaiting-first-frame"
	case SwitchCommitted:
		return "committed"
	case SwitchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// oneShot одноразовая подписка: срабатывает не более одного раза
// и снимает себя при срабатывании или отмене.
type oneShot struct {
	once        sync.Once
	mu          sync.Mutex
	released    bool
	unsubscribe func()
}

// attach запоминает функцию отписки. Если подписка уже снята, отписывается сразу.
func (o *oneShot) attach(unsubscribe func()) {
	o.mu.Lock()
	if o.released {
		o.mu.Unlock()
		unsubscribe()
		return
	}
	o.unsubscribe = unsubscribe
	o.mu.Unlock()
}

func (o *oneShot) fire(fn func()) {
	o.once.Do(func() {
		o.release()
		fn()
	})
}

func (o *oneShot) cancel() {
	o.once.Do(o.release)
}

func (o *oneShot) release() {
	o.mu.Lock()
	o.released = true
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

type switchRequest struct {
	pipeline *Pipeline
	target   domain.CaptureDevice
	handler  *oneShot
}

// switchCoordinator связывает асинхронное подтверждение устройства
// с синхронной фиксацией конфигурации.
type switchCoordinator struct {
	mu      sync.Mutex
	state   SwitchState
	outcome SwitchState
	pending *switchRequest

	// live вызывается под блокировкой координатора
	live func(*Pipeline) bool
	// commit сохраняет конфигурацию и возвращает уведомление наблюдателей
	commit func(domain.CaptureDevice) (notify func())

	logger Logger
}

func newSwitchCoordinator(live func(*Pipeline) bool, commit func(domain.CaptureDevice) func(), logger Logger) *switchCoordinator {
	return &switchCoordinator{
		live:   live,
		commit: commit,
		logger: logger,
	}
}

func (c *switchCoordinator) State() SwitchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome возвращает результат последнего завершенного переключения
func (c *switchCoordinator) Outcome() SwitchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// request запускает переключение конвейера на target.
// Незавершенное предыдущее переключение отменяется.
func (c *switchCoordinator) request(p *Pipeline, switcher CameraSwitcher, target domain.CaptureDevice) {
	req := &switchRequest{pipeline: p, target: target, handler: &oneShot{}}

	c.mu.Lock()
	previous := c.pending
	c.pending = req
	c.state = SwitchRequested
	c.mu.Unlock()

	if previous != nil {
		c.logger.Debug("Предыдущее переключение на %s отменено", previous.target.ID)
		previous.handler.cancel()
	}

	c.mu.Lock()
	if c.pending == req {
		c.state = SwitchPendingHardwareAck
	}
	c.mu.Unlock()

	switcher.SwitchCamera(target.ID, func(err error) {
		c.onHardwareResult(req, err)
	})
}

func (c *switchCoordinator) onHardwareResult(req *switchRequest, err error) {
	c.mu.Lock()
	if c.pending != req {
		c.mu.Unlock()
		c.logger.Debug("Подтверждение устаревшего переключения на %s проигнорировано", req.target.ID)
		return
	}
	if !c.live(req.pipeline) {
		c.finishLocked(SwitchFailed)
		c.mu.Unlock()
		c.logger.Debug("Конвейер уже освобожден, переключение на %s отброшено", req.target.ID)
		return
	}

	if err != nil {
		c.finishLocked(SwitchFailed)
		c.mu.Unlock()
		c.logger.Warn("Ошибка переключения камеры: %v", &SwitchError{DeviceID: req.target.ID, Err: err})
		return
	}

	events, ok := req.pipeline.Capturer.(CameraEventSource)
	if !ok {
		notify := c.commit(req.target)
		c.finishLocked(SwitchCommitted)
		c.mu.Unlock()
		notify()
		return
	}

	c.state = SwitchAwaitingFirstFrame
	c.mu.Unlock()

	unsubscribe := events.SubscribeEvents(func(event domain.CameraEvent) {
		req.handler.fire(func() { c.onCameraEvent(req, event) })
	})
	req.handler.attach(unsubscribe)
}

func (c *switchCoordinator) onCameraEvent(req *switchRequest, event domain.CameraEvent) {
	c.mu.Lock()
	if c.pending != req {
		c.mu.Unlock()
		return
	}

	if event != domain.EventFirstFrame || !c.live(req.pipeline) {
		c.finishLocked(SwitchFailed)
		c.mu.Unlock()
		c.logger.Warn("Камера %s не выдала первый кадр: %s", req.target.ID, event)
		return
	}

	notify := c.commit(req.target)
	c.finishLocked(SwitchCommitted)
	c.mu.Unlock()
	notify()
}

// cancel отменяет незавершенное переключение, обработчик становится пустым
func (c *switchCoordinator) cancel() {
	c.mu.Lock()
	req := c.pending
	if req != nil {
		c.pending = nil
		c.state = SwitchIdle
	}
	c.mu.Unlock()

	if req != nil {
		req.handler.cancel()
	}
}

func (c *switchCoordinator) finishLocked(outcome SwitchState) {
	c.pending = nil
	c.outcome = outcome
	c.state = SwitchIdle
}
