package store

import (
	"context"
	"sync"
	"time"

	"cart-service/internal/models"
)

// Memory keeps persisted carts and idempotency keys in process memory. Carts
// are encoded in the same JSON layout the other backends use.
type Memory struct {
	mu        sync.RWMutex
	carts     map[string][]byte
	keys      map[string]rememberedKey
	now       func() time.Time
	lastPrune time.Time
}

// keyPruneInterval is how often RememberOnce drops expired keys
const keyPruneInterval = time.Minute

// NewMemory creates an empty in-memory cart store
func NewMemory() *Memory {
	return &Memory{
		carts: make(map[string][]byte),
		keys:  make(map[string]rememberedKey),
		now:   time.Now,
	}
}

// Load reads the persisted cart of a session
func (m *Memory) Load(_ context.Context, sessionID string) (*models.PersistedCart, error) {
	m.mu.RLock()
	data, ok := m.carts[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, models.ErrCartNotFound
	}
	return models.DecodePersistedCart(data)
}

// Save stores the persisted cart of a session
func (m *Memory) Save(_ context.Context, sessionID string, cart *models.PersistedCart) error {
	data, err := models.EncodePersistedCart(cart)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.carts[sessionID] = data
	m.mu.Unlock()
	return nil
}

// Put stores a raw payload, bypassing encoding
func (m *Memory) Put(sessionID string, raw []byte) {
	m.mu.Lock()
	m.carts[sessionID] = raw
	m.mu.Unlock()
}

type rememberedKey struct {
	value     []byte
	expiresAt time.Time
}

// RememberOnce stores value under key unless a live entry exists, in which
// case the existing value is returned. A zero ttl never expires.
func (m *Memory) RememberOnce(_ context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastPrune) >= keyPruneInterval {
		m.pruneKeys(now)
	}

	if existing, ok := m.keys[key]; ok {
		if existing.expiresAt.IsZero() || now.Before(existing.expiresAt) {
			return existing.value, false, nil
		}
	}

	entry := rememberedKey{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.keys[key] = entry
	return nil, true, nil
}

func (m *Memory) pruneKeys(now time.Time) {
	for k, entry := range m.keys {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.keys, k)
		}
	}
	m.lastPrune = now
}
