package domain

// ControlTrack тип служебного сообщения о смене исходящего трека
const ControlTrack = "track"

// ControlMessage служебное сообщение ретранслятора.
// Передается текстовым кадром WebSocket, видеоданные идут бинарными.
type ControlMessage struct {
	Type     string `json:"type"`
	TrackID  string `json:"track_id"`
	Preserve bool   `json:"preserve"`
}
