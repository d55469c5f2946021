package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cart-service/internal/cart"
	"cart-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrShutdown is returned by Get once the manager has been shut down.
var ErrShutdown = errors.New("session manager shut down")

// EngineFactory builds the engine for a session, hydrating it from storage.
type EngineFactory func(ctx context.Context, sessionID string) (*cart.Engine, error)

type entry struct {
	engine   *cart.Engine
	lastUsed time.Time
}

// Manager owns one cart engine per session.
type Manager struct {
	factory EngineFactory
	idleTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	shutdown bool
}

// NewManager creates a session manager. A zero idleTTL disables eviction.
func NewManager(factory EngineFactory, idleTTL time.Duration) *Manager {
	return &Manager{
		factory:  factory,
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   util.GetLogger(),
		sessions: make(map[string]*entry),
	}
}

// NewSessionID generates a fresh session id
func NewSessionID() string {
	return uuid.New().String()
}

// Get returns the engine for sessionID, creating it on first use. The engine
// is built outside the lock; when two callers race, the first one stored
// wins and the other engine is closed. A failed build is not cached.
func (m *Manager) Get(ctx context.Context, sessionID string) (*cart.Engine, error) {
	if engine, ok, err := m.lookup(sessionID); ok || err != nil {
		return engine, err
	}

	engine, err := m.factory(ctx, sessionID)
	if err != nil {
		m.logger.Warn("Failed to open cart session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("open session %s: %w", sessionID, err)
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		engine.Close()
		return nil, ErrShutdown
	}
	if e, ok := m.sessions[sessionID]; ok {
		e.lastUsed = m.now()
		m.mu.Unlock()
		engine.Close()
		return e.engine, nil
	}
	m.sessions[sessionID] = &entry{engine: engine, lastUsed: m.now()}
	m.mu.Unlock()

	util.SessionsActive.Inc()
	m.logger.Info("Cart session started", zap.String("session_id", sessionID))
	return engine, nil
}

func (m *Manager) lookup(sessionID string) (*cart.Engine, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, false, ErrShutdown
	}
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	e.lastUsed = m.now()
	return e.engine, true, nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the engine of one session. Its persisted cart is kept.
func (m *Manager) Close(sessionID string) bool {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.engine.Close()
	util.SessionsActive.Dec()
	return true
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many were evicted.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*entry
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		e.engine.Close()
		util.SessionsActive.Dec()
		m.logger.Info("Cart session evicted", zap.String("session_id", e.engine.SessionID()))
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Swept idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown closes every session; later Get calls fail with ErrShutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	sessions := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range sessions {
		e.engine.Close()
		util.SessionsActive.Dec()
	}
	m.logger.Info("All cart sessions closed", zap.Int("count", len(sessions)))
}
