package service

import (
	"context"
	"sync"
	"time"

	"shop-assistant/internal/broker"
	"shop-assistant/internal/cart"
	"shop-assistant/internal/catalog"
	"shop-assistant/internal/checkout"
	"shop-assistant/internal/command"
	"shop-assistant/internal/util"
	"shop-assistant/internal/vision"
	"shop-assistant/internal/voice"

	"go.uber.org/zap"
)

// AssistantConfig holds the collaborators shared by every session.
type AssistantConfig struct {
	Catalog       *catalog.Catalog
	Interpreter   *command.Interpreter
	Repository    cart.Repository
	Identifier    vision.Identifier
	Publisher     *broker.EventPublisher
	VisionTimeout time.Duration
	// CheckoutOptions are applied to every session's checkout machine.
	CheckoutOptions []checkout.Option
	CartOptions     []cart.Option
}

// NewAssistant creates the assistant of one session and loads its cart.
func NewAssistant(ctx context.Context, sessionID string, cfg AssistantConfig, speaker voice.Speaker, frames FrameSource) *Assistant {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Interpreter == nil {
		cfg.Interpreter = command.Default()
	}
	if cfg.Repository == nil {
		cfg.Repository = cart.NewMemoryRepository()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = broker.NewEventPublisher(nil)
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = vision.DefaultTimeout
	}

	a := &Assistant{
		sessionID:     sessionID,
		catalog:       cfg.Catalog,
		interpreter:   cfg.Interpreter,
		cart:          cart.Open(ctx, cart.SessionKey(sessionID), cfg.Catalog, cfg.Repository, cfg.CartOptions...),
		checkout:      checkout.New(cfg.CheckoutOptions...),
		identifier:    cfg.Identifier,
		publisher:     cfg.Publisher,
		visionTimeout: cfg.VisionTimeout,
		logger:        util.GetLogger(),
	}
	a.attach(speaker, frames)
	return a
}

// SessionManager owns the assistants of all live sessions.
type SessionManager struct {
	cfg      AssistantConfig
	mu       sync.Mutex
	sessions map[string]*Assistant
	conns    map[string]int
	logger   *zap.Logger
}

func NewSessionManager(cfg AssistantConfig) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*Assistant),
		conns:    make(map[string]int),
		logger:   util.GetLogger(),
	}
}

// Get returns the assistant of sessionID, creating it on first use. An
// existing session is rebound to the given speaker and frame source.
// Every Get counts as one connection until the matching Release.
func (m *SessionManager) Get(ctx context.Context, sessionID string, speaker voice.Speaker, frames FrameSource) *Assistant {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns[sessionID]++
	if a, ok := m.sessions[sessionID]; ok {
		a.attach(speaker, frames)
		return a
	}

	a := NewAssistant(ctx, sessionID, m.cfg, speaker, frames)
	m.sessions[sessionID] = a
	m.logger.Info("Session opened", zap.String("session_id", sessionID))
	return a
}

// Lookup returns a live session without creating one.
func (m *SessionManager) Lookup(sessionID string) (*Assistant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.sessions[sessionID]
	return a, ok
}

// Release ends one connection of sessionID and drops the session when it
// was the last.
func (m *SessionManager) Release(sessionID string) {
	m.mu.Lock()
	m.conns[sessionID]--
	if m.conns[sessionID] > 0 {
		m.mu.Unlock()
		return
	}
	a, ok := m.forgetLocked(sessionID)
	m.mu.Unlock()

	if ok {
		m.closed(sessionID, a)
	}
}

// Drop forgets a session regardless of open connections. Its cart stays in
// the repository.
func (m *SessionManager) Drop(sessionID string) {
	m.mu.Lock()
	a, ok := m.forgetLocked(sessionID)
	m.mu.Unlock()

	if ok {
		m.closed(sessionID, a)
	}
}

func (m *SessionManager) forgetLocked(sessionID string) (*Assistant, bool) {
	a, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	delete(m.conns, sessionID)
	return a, ok
}

func (m *SessionManager) closed(sessionID string, a *Assistant) {
	if err := a.Voice().Stop(); err != nil {
		m.logger.Warn("Failed to stop speech on drop", zap.String("session_id", sessionID), zap.Error(err))
	}
	m.logger.Info("Session closed", zap.String("session_id", sessionID))
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
