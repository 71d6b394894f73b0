package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"golang.org/x/sync/errgroup"

	"webcam-transfer/capture/internal/application"
	"webcam-transfer/capture/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Разрешаем все подключения
	},
}

// Segment записанный сегмент одного трека
type Segment struct {
	TrackID string
	Path    string
}

// Server принимает видеопоток по WebSocket (ретранслятор) и WebRTC
// и записывает каждый исходящий трек клиента в отдельный файл
type Server struct {
	outputDir string
	api       *webrtc.API
	logger    application.Logger

	mu       sync.Mutex
	segments []Segment
	sessions sync.WaitGroup
	peers    map[*webrtc.PeerConnection]struct{}
}

// NewServer создает сервер приема. api может быть nil, тогда WebRTC недоступен.
func NewServer(outputDir string, api *webrtc.API, logger application.Logger) *Server {
	return &Server{
		outputDir: outputDir,
		api:       api,
		logger:    logger,
		peers:     make(map[*webrtc.PeerConnection]struct{}),
	}
}

// Handler возвращает HTTP обработчик сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/publish", s.handlePublish)
	mux.HandleFunc("/", s.handleStatus)
	return mux
}

// ListenAndServe запускает HTTP-сервер до отмены ctx
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Запуск сервера на %s...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closePeers()
		return err
	})
	return g.Wait()
}

// Segments возвращает записанные сегменты в порядке создания
func (s *Server) Segments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Wait ждет завершения всех сессий приема
func (s *Server) Wait() {
	s.sessions.Wait()
}

func (s *Server) openSegment(trackID string) (*VideoWriter, error) {
	writer, err := NewVideoWriter(s.outputDir, trackID, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.segments = append(s.segments, Segment{TrackID: trackID, Path: writer.Path()})
	s.mu.Unlock()
	return writer, nil
}

// handleWebSocket принимает бинарные кадры ретранслятора.
// Служебное сообщение о смене трека начинает новый сегмент.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Сессия учитывается до ответа на апгрейд, чтобы Wait ее видел
	s.sessions.Add(1)
	defer s.sessions.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}
	defer conn.Close()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("Клиент подключен: %s", clientAddr)

	session := &wsSession{server: s}
	defer session.close()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Ошибка чтения: %v", err)
			}
			break
		}

		if err := session.handle(messageType, message); err != nil {
			s.logger.Error("Ошибка обработки сообщения: %v", err)
			break
		}
	}

	s.logger.Info("Клиент отключен: %s", clientAddr)
}

type wsSession struct {
	server  *Server
	trackID string
	writer  *VideoWriter
}

func (ws *wsSession) handle(messageType int, message []byte) error {
	switch messageType {
	case websocket.TextMessage:
		var msg domain.ControlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			ws.server.logger.Warn("Некорректное служебное сообщение: %v", err)
			return nil
		}
		if msg.Type != domain.ControlTrack || msg.TrackID == ws.trackID {
			return nil
		}
		ws.server.logger.Info("Новый трек клиента: %s", msg.TrackID)
		return ws.rotate(msg.TrackID)

	case websocket.BinaryMessage:
		// Клиент без служебных сообщений пишет в один сегмент
		if ws.writer == nil {
			if err := ws.rotate("stream"); err != nil {
				return err
			}
		}
		_, err := ws.writer.Write(message)
		return err
	}
	return nil
}

func (ws *wsSession) rotate(trackID string) error {
	ws.close()
	writer, err := ws.server.openSegment(trackID)
	if err != nil {
		return err
	}
	ws.trackID = trackID
	ws.writer = writer
	return nil
}

func (ws *wsSession) close() {
	if ws.writer == nil {
		return
	}
	if err := ws.writer.Close(); err != nil {
		ws.server.logger.Error("Ошибка закрытия сегмента: %v", err)
	}
	ws.writer = nil
}

// handlePublish принимает WebRTC offer и записывает входящий H.264 трек
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.api == nil {
		http.Error(w, "WebRTC недоступен", http.StatusNotImplemented)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.trackPeer(pc, true)

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.record(track)
		}()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Info("Издатель: %s", state)
		if state == webrtc.PeerConnectionStateClosed || state == webrtc.PeerConnectionStateFailed {
			s.trackPeer(pc, false)
			pc.Close()
		}
	})

	answer, err := s.negotiate(pc, offer)
	if err != nil {
		s.trackPeer(pc, false)
		pc.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(answer); err != nil {
		s.logger.Error("Ошибка отправки answer: %v", err)
	}
}

func (s *Server) negotiate(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("установка offer: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("создание answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("установка answer: %w", err)
	}
	<-gatherComplete

	return pc.LocalDescription(), nil
}

// record пишет RTP пакеты H.264 трека в сегмент до закрытия трека
func (s *Server) record(track *webrtc.TrackRemote) {
	if !strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeH264) {
		s.logger.Warn("Трек %s с кодеком %s не записывается", track.ID(), track.Codec().MimeType)
		return
	}

	segment, err := s.openSegment(track.ID())
	if err != nil {
		s.logger.Error("Не удалось создать запись: %v", err)
		return
	}
	writer := h264writer.NewWith(segment)
	defer func() {
		if err := writer.Close(); err != nil {
			s.logger.Error("Ошибка закрытия сегмента: %v", err)
		}
	}()

	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			s.logger.Debug("Трек %s завершен: %v", track.ID(), err)
			return
		}
		if err := writer.WriteRTP(packet); err != nil {
			s.logger.Error("Ошибка записи данных: %v", err)
			return
		}
	}
}

func (s *Server) trackPeer(pc *webrtc.PeerConnection, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.peers[pc] = struct{}{}
	} else {
		delete(s.peers, pc)
	}
}

func (s *Server) closePeers() {
	s.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(s.peers))
	for pc := range s.peers {
		peers = append(peers, pc)
	}
	s.peers = make(map[*webrtc.PeerConnection]struct{})
	s.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Сервер стриминга веб-камеры</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		.status { padding: 20px; background-color: #e0f7fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>Сервер стриминга веб-камеры</h1>
	<div class="status">
		<p>✅ Сервер запущен и принимает соединения</p>
		<p>Директория для записей: <code>{{.OutputDir}}</code></p>
	</div>
	<h2>Сегменты</h2>
	<ul>{{range .Segments}}
		<li><code>{{.TrackID}}</code>: {{.Path}}</li>{{end}}
	</ul>
</body>
</html>
`))

// handleStatus простая страница-статус
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := statusPage.Execute(w, struct {
		OutputDir string
		Segments  []Segment
	}{s.outputDir, s.Segments()})
	if err != nil {
		s.logger.Error("Ошибка вывода статуса: %v", err)
	}
}
