package streaming

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

var ErrNotConnected = errors.New("нет подключения к серверу")

// WebSocketStreamer ретранслирует кадры трека на сервер через WebSocket.
// Реализует application.NetworkSender: при смене трека переподключается
// к новому треку и сообщает серверу его идентификатор.
type WebSocketStreamer struct {
	logger    application.Logger
	debugMode bool
	dialer    *websocket.Dialer

	mutex        sync.Mutex
	conn         *websocket.Conn
	connected    bool
	done         chan struct{}
	track        application.TrackHandle
	frameCounter int
	startTime    time.Time
}

// NewWebSocketStreamer создает новый WebSocket стример
func NewWebSocketStreamer(logger application.Logger, debugMode bool) *WebSocketStreamer {
	return &WebSocketStreamer{
		logger:    logger,
		debugMode: debugMode,
		dialer:    websocket.DefaultDialer,
		done:      closedChan(),
	}
}

// Connect подключается к серверу
func (s *WebSocketStreamer) Connect(ctx context.Context, rawURL string) error {
	// Если уже подключены, отключаемся сначала
	if s.IsConnected() {
		s.StopStreaming()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		s.logger.Error("Некорректный URL стриминга: %v", err)
		return err
	}

	s.logger.Info("Подключение к %s", u.String())
	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		s.logger.Error("Ошибка подключения к серверу: %v", err)
		return err
	}

	s.mutex.Lock()
	s.conn = conn
	s.connected = true
	s.done = make(chan struct{})
	s.frameCounter = 0
	s.startTime = time.Now()
	track := s.track
	s.mutex.Unlock()

	go s.readLoop(conn)

	s.logger.Info("Подключено к серверу")
	if track != nil {
		return s.announce(track, true)
	}
	return nil
}

// SetTrack переключает ретрансляцию на новый трек
func (s *WebSocketStreamer) SetTrack(track application.TrackHandle, preserveState bool) error {
	s.mutex.Lock()
	old := s.track
	s.track = track
	if !preserveState {
		s.frameCounter = 0
		s.startTime = time.Now()
	}
	s.mutex.Unlock()

	if old != nil && old != track {
		old.RemoveSink(s)
	}
	if track == nil {
		return nil
	}
	track.AddSink(s)

	err := s.announce(track, preserveState)
	if errors.Is(err, ErrNotConnected) {
		s.logger.Debug("Трек %s будет объявлен после подключения", track.ID())
		return nil
	}
	return err
}

// OnFrame отправляет кадр на сервер
func (s *WebSocketStreamer) OnFrame(frame *domain.VideoFrame) {
	if err := s.sendFrame(frame); err != nil {
		s.logger.Error("Ошибка отправки кадра: %v", err)
		s.disconnect()
	}
}

// StopStreaming останавливает стриминг
func (s *WebSocketStreamer) StopStreaming() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected || s.conn == nil {
		return nil
	}

	// Отправляем сообщение о закрытии
	err := s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		s.logger.Error("Ошибка закрытия WebSocket: %v", err)
	}

	s.closeLocked()
	return nil
}

// Close отключается от сервера и отвязывается от трека
func (s *WebSocketStreamer) Close() error {
	s.mutex.Lock()
	track := s.track
	s.track = nil
	s.mutex.Unlock()

	if track != nil {
		track.RemoveSink(s)
	}
	return s.StopStreaming()
}

// IsConnected возвращает статус подключения
func (s *WebSocketStreamer) IsConnected() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connected
}

// Done закрывается при потере соединения
func (s *WebSocketStreamer) Done() <-chan struct{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.done
}

func (s *WebSocketStreamer) announce(track application.TrackHandle, preserveState bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected || s.conn == nil {
		return ErrNotConnected
	}

	s.logger.Debug("Объявление трека %s", track.ID())
	return s.conn.WriteJSON(domain.ControlMessage{
		Type:     domain.ControlTrack,
		TrackID:  track.ID(),
		Preserve: preserveState,
	})
}

// sendFrame внутренний метод для отправки кадра
func (s *WebSocketStreamer) sendFrame(frame *domain.VideoFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected || s.conn == nil {
		return nil
	}

	err := s.conn.WriteMessage(websocket.BinaryMessage, frame.Data)
	if err != nil {
		return err
	}

	s.frameCounter++

	// Отладочная информация
	if s.debugMode && s.frameCounter%30 == 0 {
		elapsed := time.Since(s.startTime).Seconds()
		fps := float64(s.frameCounter) / elapsed
		s.logger.Debug("Отправлено фреймов: %d, FPS: %.2f, Размер последнего фрейма: %d байт",
			s.frameCounter, fps, frame.Size)
	}

	return nil
}

// readLoop обрабатывает управляющие кадры сервера и замечает разрыв соединения
func (s *WebSocketStreamer) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Debug("Чтение из WebSocket завершено: %v", err)
			}
			break
		}
	}

	s.mutex.Lock()
	if s.conn == conn {
		s.closeLocked()
	}
	s.mutex.Unlock()
}

func (s *WebSocketStreamer) disconnect() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.connected {
		s.closeLocked()
	}
}

func (s *WebSocketStreamer) closeLocked() {
	s.conn.Close()
	s.conn = nil
	s.connected = false
	close(s.done)
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
