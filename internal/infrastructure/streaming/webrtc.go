package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"webcam-transfer/capture/internal/application"
)

var ErrNoLocalTrack = errors.New("трек не поддерживает WebRTC")

// NewAPI создает WebRTC API с кодеками по умолчанию и логгером pion
func NewAPI(loggerFactory logging.LoggerFactory) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	se := webrtc.SettingEngine{}
	if loggerFactory != nil {
		se.LoggerFactory = loggerFactory
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)), nil
}

// LocalTrackProvider реализуется треками, которые можно отправить через WebRTC
type LocalTrackProvider interface {
	TrackLocal() webrtc.TrackLocal
}

// RTPSender привязывает треки к отправителю PeerConnection.
// Замена трека не требует пересогласования соединения.
type RTPSender struct {
	sender *webrtc.RTPSender
	logger application.Logger

	mu      sync.Mutex
	current string
}

// NewRTPSender оборачивает отправитель PeerConnection
func NewRTPSender(sender *webrtc.RTPSender, logger application.Logger) *RTPSender {
	return &RTPSender{sender: sender, logger: logger}
}

// SetTrack заменяет отправляемый трек. Параметры RTP (SSRC, нумерация)
// сохраняются отправителем независимо от preserveState.
func (s *RTPSender) SetTrack(track application.TrackHandle, preserveState bool) error {
	provider, ok := track.(LocalTrackProvider)
	if !ok {
		return ErrNoLocalTrack
	}

	if err := s.sender.ReplaceTrack(provider.TrackLocal()); err != nil {
		return fmt.Errorf("замена трека %s: %w", track.ID(), err)
	}

	s.mu.Lock()
	previous := s.current
	s.current = track.ID()
	s.mu.Unlock()

	s.logger.Debug("RTP отправитель: %s -> %s", previous, track.ID())
	return nil
}

// TrackID возвращает идентификатор отправляемого трека
func (s *RTPSender) TrackID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Publisher публикует видео через WebRTC: offer отправляется HTTP POST
// на сервер, ответ сервера применяется как answer
type Publisher struct {
	pc     *webrtc.PeerConnection
	sender *RTPSender
	client *http.Client
	logger application.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewPublisher создает PeerConnection с одним исходящим видеотрансивером
func NewPublisher(api *webrtc.API, logger application.Logger) (*Publisher, error) {
	if api == nil {
		var err error
		if api, err = NewAPI(nil); err != nil {
			return nil, err
		}
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("создание PeerConnection: %w", err)
	}

	transceiver, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("создание трансивера: %w", err)
	}

	p := &Publisher{
		pc:     pc,
		sender: NewRTPSender(transceiver.Sender(), logger),
		client: http.DefaultClient,
		logger: logger,
		done:   make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("Состояние WebRTC соединения: %s", state)
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			p.doneOnce.Do(func() { close(p.done) })
		}
	})

	// Читаем RTCP, чтобы работали интерсепторы
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := transceiver.Sender().Read(buf); err != nil {
				return
			}
		}
	}()

	return p, nil
}

// Sender возвращает отправитель для привязки к контроллеру
func (p *Publisher) Sender() *RTPSender {
	return p.sender
}

// SetTrack привязывает трек к отправителю
func (p *Publisher) SetTrack(track application.TrackHandle, preserveState bool) error {
	return p.sender.SetTrack(track, preserveState)
}

// Connect выполняет обмен offer/answer с сервером по адресу endpoint
func (p *Publisher) Connect(ctx context.Context, endpoint string) error {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("создание offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("установка offer: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}

	body, err := json.Marshal(p.pc.LocalDescription())
	if err != nil {
		return err
	}

	p.logger.Info("Отправка offer на %s", endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("отправка offer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("сервер отклонил offer: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var answer webrtc.SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return fmt.Errorf("чтение answer: %w", err)
	}
	return p.pc.SetRemoteDescription(answer)
}

// Done закрывается при разрыве WebRTC соединения
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

// Close закрывает PeerConnection
func (p *Publisher) Close() error {
	return p.pc.Close()
}
