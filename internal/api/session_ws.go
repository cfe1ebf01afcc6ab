package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"shop-assistant/internal/models"
	"shop-assistant/internal/service"
	"shop-assistant/internal/vision"
	"shop-assistant/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client frame types
const (
	MsgTranscript       = "transcript"
	MsgFrame            = "frame"
	MsgRecognitionError = "recognition_error"
	MsgSettings         = "settings"
	MsgGreet            = "greet"
)

// Server frame types besides speech
const (
	FrameCart  = "cart"
	FrameError = "error"
)

const frameWait = 5 * time.Second

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Image    string          `json:"image,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Settings *voice.Settings `json:"settings,omitempty"`
}

// CartFrame carries the cart after every change.
type CartFrame struct {
	Type string              `json:"type"`
	Cart models.CartSnapshot `json:"cart"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin applies the CORS allowlist to websocket upgrades. Requests
// without an Origin header and same-host pages pass.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.allowAllOrigins() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range h.corsOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// socketFrames is the camera of a websocket session. The browser pushes the
// latest frame; Capture waits for one when none arrived yet.
type socketFrames struct {
	mu     sync.Mutex
	latest []byte
	ready  chan struct{}
}

func newSocketFrames() *socketFrames {
	return &socketFrames{ready: make(chan struct{})}
}

func (f *socketFrames) push(image []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := f.latest == nil
	f.latest = image
	if first {
		close(f.ready)
	}
}

func (f *socketFrames) Capture(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, frameWait)
	defer cancel()

	select {
	case <-f.ready:
	case <-ctx.Done():
		return nil, errors.New("no frame received from client")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, nil
}

// voiceSession runs one browser voice session over a websocket
func (h *Handler) voiceSession(c *gin.Context) {
	sessionID := c.Param("id")

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("session_id", sessionID),
			zap.String("origin", c.GetHeader("Origin")),
			zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	speaker := voice.NewSocketSpeaker(conn)
	frames := newSocketFrames()
	assistant := h.sessions.Get(ctx, sessionID, speaker, frames)
	defer h.sessions.Release(sessionID)

	sendCart := func(lines []models.CartLine) {
		snap := models.NewCartSnapshot(lines, time.Now())
		if err := speaker.Send(CartFrame{Type: FrameCart, Cart: snap}); err != nil {
			h.logger.Debug("Failed to send cart frame", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	unsubscribe := assistant.Cart().Subscribe(sendCart)
	defer unsubscribe()

	h.logger.Info("Voice session connected", zap.String("session_id", sessionID))
	sendCart(assistant.Cart().Lines())

	// Transcripts are handled one at a time off the read loop, so camera
	// frames are still accepted during a payment wait.
	work := make(chan ClientMessage, 8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range work {
			h.dispatch(ctx, assistant, speaker, msg)
		}
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.String("session_id", sessionID), zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MsgFrame:
			image, err := vision.DecodeImage(msg.Image)
			if err != nil {
				_ = speaker.Send(errorFrame{Type: FrameError, Error: err.Error()})
				continue
			}
			frames.push(image)
		case MsgSettings:
			if msg.Settings != nil {
				assistant.Voice().UpdateSettings(*msg.Settings)
			}
		default:
			select {
			case work <- msg:
			default:
				_ = speaker.Send(errorFrame{Type: FrameError, Error: service.ErrBusy.Error()})
			}
		}
	}

	cancel()
	close(work)
	wg.Wait()
	h.logger.Info("Voice session disconnected", zap.String("session_id", sessionID))
}

func (h *Handler) dispatch(ctx context.Context, a *service.Assistant, speaker *voice.SocketSpeaker, msg ClientMessage) {
	var err error
	switch msg.Type {
	case MsgTranscript:
		_, err = a.HandleTranscript(ctx, msg.Text)
	case MsgRecognitionError:
		err = a.HandleRecognitionError(ctx, voice.ParseReason(msg.Reason))
	case MsgGreet:
		err = a.Greet(ctx)
	default:
		err = errors.New("unknown message type: " + msg.Type)
		_ = speaker.Send(errorFrame{Type: FrameError, Error: err.Error()})
		return
	}

	if err != nil && ctx.Err() == nil {
		h.logger.Debug("Voice command failed",
			zap.String("session_id", a.SessionID()),
			zap.String("type", msg.Type),
			zap.Error(err))
	}
}
