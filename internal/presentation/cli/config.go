package cli

import (
	"errors"
	"fmt"

	"webcam-transfer/capture/internal/domain"
)

const (
	TransportWebSocket = "websocket"
	TransportWebRTC    = "webrtc"
)

// Config представляет конфигурацию команды stream
type Config struct {
	Address    string
	Width      int
	Height     int
	FPS        int
	BitRate    int
	Debug      bool
	DeviceID   string
	Position   string
	Screencast bool
	Transport  string
}

// DefaultConfig значения флагов по умолчанию
func DefaultConfig() Config {
	return Config{
		Address:   "localhost:8080",
		Width:     640,
		Height:    480,
		FPS:       30,
		BitRate:   1_000_000,
		Transport: TransportWebSocket,
	}
}

// Validate проверяет конфигурацию до открытия камеры
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("адрес сервера не задан")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("некорректный размер кадра: %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("некорректная частота кадров: %d", c.FPS)
	}
	if c.BitRate <= 0 {
		return fmt.Errorf("некорректный битрейт: %d", c.BitRate)
	}
	switch c.Transport {
	case TransportWebSocket, TransportWebRTC:
	default:
		return fmt.Errorf("неизвестный транспорт: %q", c.Transport)
	}
	if _, err := domain.ParsePosition(c.Position); err != nil {
		return err
	}
	if c.Screencast && (c.DeviceID != "" || c.Position != "") {
		return errors.New("--screencast несовместим с --device и --position")
	}
	return nil
}

// TrackConfiguration переводит флаги в конфигурацию трека
func (c Config) TrackConfiguration() domain.TrackConfiguration {
	position, _ := domain.ParsePosition(c.Position)
	return domain.TrackConfiguration{
		DeviceID:     c.DeviceID,
		Position:     position,
		Width:        c.Width,
		Height:       c.Height,
		MaxFrameRate: c.FPS,
		Screencast:   c.Screencast,
	}
}

// Endpoint адрес сервера для выбранного транспорта
func (c Config) Endpoint() string {
	if c.Transport == TransportWebRTC {
		return fmt.Sprintf("http://%s/publish", c.Address)
	}
	return fmt.Sprintf("ws://%s/ws", c.Address)
}
