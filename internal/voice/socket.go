package voice

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame types sent to a websocket client
const (
	FrameSpeech = "speech"
	FrameStop   = "stop"
)

// SpeechFrame asks the client to synthesize text.
type SpeechFrame struct {
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	Priority Priority `json:"priority"`
	Settings Settings `json:"settings"`
}

// SocketSpeaker sends speech frames to a browser that owns the synthesizer.
// Writes are serialized so other frames can share the connection via Send.
type SocketSpeaker struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	settings Settings
}

func NewSocketSpeaker(conn *websocket.Conn) *SocketSpeaker {
	return &SocketSpeaker{conn: conn, settings: DefaultSettings()}
}

func (s *SocketSpeaker) Speak(_ context.Context, text string, priority Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(SpeechFrame{
		Type:     FrameSpeech,
		Text:     text,
		Priority: priority,
		Settings: s.settings,
	})
}

func (s *SocketSpeaker) Stop() error {
	return s.Send(map[string]string{"type": FrameStop})
}

func (s *SocketSpeaker) ApplySettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Send writes an arbitrary JSON frame on the shared connection.
func (s *SocketSpeaker) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}
