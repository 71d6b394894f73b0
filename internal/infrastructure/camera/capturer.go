package camera

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

// Capturer захватчик кадров одного устройства.
// Умеет переключать камеру на лету и сообщает о первом кадре.
type Capturer struct {
	screencast bool
	source     *FrameSource
	pool       *FramePool
	open       Opener
	events     *eventHub
	logger     application.Logger

	mu       sync.Mutex
	deviceID string
	stream   Stream
	pump     *pump
	width    int
	height   int
	fps      int
	running  bool
	disposed bool
}

// pump цикл чтения кадров одного открытого потока
type pump struct {
	stop chan struct{}
	done chan struct{}
}

// NewCapturer создает захватчик. Устройство открывается в StartCapture.
func NewCapturer(deviceID string, screencast bool, source *FrameSource, pool *FramePool, open Opener, logger application.Logger) *Capturer {
	return &Capturer{
		deviceID:   deviceID,
		screencast: screencast,
		source:     source,
		pool:       pool,
		open:       open,
		events:     newEventHub(),
		logger:     logger,
	}
}

// DeviceID возвращает текущее устройство
func (c *Capturer) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// StartCapture открывает устройство и запускает выдачу кадров.
// Повторный вызов с другими параметрами переоткрывает устройство.
func (c *Capturer) StartCapture(width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return ErrCapturerClosed
	}
	if c.running {
		if c.width == width && c.height == height && c.fps == fps {
			return nil
		}
		if err := c.stopLocked(); err != nil {
			c.logger.Warn("Ошибка остановки захвата: %v", err)
		}
	}

	stream, err := c.open(c.request(c.deviceID, width, height, fps))
	if err != nil {
		return fmt.Errorf("открытие устройства %s: %w", c.deviceID, err)
	}

	c.width, c.height, c.fps = width, height, fps
	c.running = true
	c.stream = stream
	c.startPumpLocked(stream)

	c.logger.Info("Захват запущен: %s %dx%d@%d", c.deviceID, width, height, fps)
	return nil
}

// StopCapture останавливает выдачу кадров и закрывает устройство
func (c *Capturer) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// SwitchCamera переоткрывает захват на другом устройстве.
// done вызывается из отдельной горутины до запуска чтения кадров
// нового устройства, поэтому подписка на первый кадр успевает сработать.
// Захватчик экрана отвечает ErrScreenSwitch и продолжает работу.
func (c *Capturer) SwitchCamera(deviceID string, done func(err error)) {
	if c.screencast {
		go done(ErrScreenSwitch)
		return
	}
	go func() {
		stream, err := c.reopen(deviceID)
		done(err)
		if stream != nil {
			c.resume(stream)
		}
	}()
}

// SubscribeEvents подписывает handler на события захватчика
func (c *Capturer) SubscribeEvents(handler func(domain.CameraEvent)) (unsubscribe func()) {
	return c.events.subscribe(handler)
}

// Dispose останавливает захват и сообщает подписчикам о закрытии камеры
func (c *Capturer) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	err := c.stopLocked()
	c.mu.Unlock()

	c.events.emit(domain.EventClosed)
	c.events.clear()
	return err
}

func (c *Capturer) reopen(deviceID string) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ErrCapturerClosed
	}
	if !c.running {
		// Захват остановлен: устройство откроется при следующем запуске
		c.deviceID = deviceID
		return nil, nil
	}

	previous := c.deviceID
	if err := c.stopLocked(); err != nil {
		c.logger.Warn("Ошибка остановки захвата %s: %v", previous, err)
	}

	stream, err := c.open(c.request(deviceID, c.width, c.height, c.fps))
	if err != nil {
		c.logger.Warn("Не удалось открыть %s, возвращаемся на %s", deviceID, previous)
		if back, berr := c.open(c.request(previous, c.width, c.height, c.fps)); berr == nil {
			c.running = true
			c.stream = back
			c.startPumpLocked(back)
		} else {
			c.logger.Error("Не удалось вернуться на %s: %v", previous, berr)
		}
		return nil, err
	}

	c.deviceID = deviceID
	c.running = true
	c.stream = stream
	return stream, nil
}

// resume запускает чтение потока, открытого при переключении,
// если его не успели остановить
func (c *Capturer) resume(stream Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || !c.running || c.stream != stream || c.pump != nil {
		return
	}
	c.startPumpLocked(stream)
}

func (c *Capturer) request(deviceID string, width, height, fps int) OpenRequest {
	return OpenRequest{
		DeviceID:   deviceID,
		Screencast: c.screencast,
		Width:      width,
		Height:     height,
		FrameRate:  fps,
	}
}

func (c *Capturer) startPumpLocked(stream Stream) {
	p := &pump{stop: make(chan struct{}), done: make(chan struct{})}
	c.pump = p

	stream.OnEnded(func(err error) {
		select {
		case <-p.stop:
			return
		default:
		}
		c.logger.Warn("Устройство перестало выдавать кадры: %v", err)
		c.events.emit(domain.EventDisconnected)
	})

	go c.run(p, stream)
}

func (c *Capturer) stopLocked() error {
	if !c.running {
		return nil
	}

	p := c.pump
	stream := c.stream
	c.pump = nil
	c.stream = nil
	c.running = false

	if p != nil {
		close(p.stop)
	}
	err := stream.Close()
	if p != nil {
		<-p.done
	}
	return err
}

// run читает закодированные кадры и передает их источнику
func (c *Capturer) run(p *pump, stream Stream) {
	defer close(p.done)

	number := 0
	for {
		buf := c.pool.Get()
		n, err := stream.Read(buf)
		if err != nil {
			c.pool.Put(buf)
			select {
			case <-p.stop:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				c.logger.Warn("Поток устройства завершен")
				c.events.emit(domain.EventDisconnected)
			} else {
				c.logger.Error("Ошибка чтения данных: %v", err)
				c.events.emit(domain.EventError)
			}
			return
		}

		if n == 0 {
			c.pool.Put(buf)
			continue
		}

		number++
		// Копируем данные, буфер вернется в пул
		data := make([]byte, n)
		copy(data, buf[:n])
		c.pool.Put(buf)

		c.source.Deliver(&domain.VideoFrame{Data: data, Size: n, Number: number})
		if number == 1 {
			c.events.emit(domain.EventFirstFrame)
		}
	}
}
