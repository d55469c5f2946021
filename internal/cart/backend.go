package cart

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"cart-service/internal/models"
)

// Backend is the remote cart service each mutating operation round-trips through
// before its result is committed.
type Backend interface {
	AddItem(ctx context.Context, sessionID string, item models.CartLineItem) error
	UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) error
	RemoveItem(ctx context.Context, sessionID, itemID string) error
	ApplyDiscount(ctx context.Context, sessionID, code string) error
}

// Latency holds per-operation delays for the simulated backend.
type Latency struct {
	Add      time.Duration
	Update   time.Duration
	Remove   time.Duration
	Discount time.Duration
}

// DefaultLatency mirrors the demo's artificial network delays.
func DefaultLatency() Latency {
	return Latency{
		Add:      300 * time.Millisecond,
		Update:   200 * time.Millisecond,
		Remove:   200 * time.Millisecond,
		Discount: 500 * time.Millisecond,
	}
}

// SimulatedBackend stands in for a remote cart service with fixed delays and
// an optional random failure rate (0.0 - 1.0).
type SimulatedBackend struct {
	latency     Latency
	failureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedBackend creates a simulated backend
func NewSimulatedBackend(latency Latency, failureRate float64) *SimulatedBackend {
	return &SimulatedBackend{
		latency:     latency,
		failureRate: failureRate,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *SimulatedBackend) AddItem(ctx context.Context, _ string, _ models.CartLineItem) error {
	return b.roundTrip(ctx, b.latency.Add)
}

func (b *SimulatedBackend) UpdateQuantity(ctx context.Context, _, _ string, _ int) error {
	return b.roundTrip(ctx, b.latency.Update)
}

func (b *SimulatedBackend) RemoveItem(ctx context.Context, _, _ string) error {
	return b.roundTrip(ctx, b.latency.Remove)
}

func (b *SimulatedBackend) ApplyDiscount(ctx context.Context, _, _ string) error {
	return b.roundTrip(ctx, b.latency.Discount)
}

func (b *SimulatedBackend) roundTrip(ctx context.Context, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if b.failureRate <= 0 {
		return nil
	}

	b.mu.Lock()
	roll := b.rnd.Float64()
	b.mu.Unlock()

	if roll < b.failureRate {
		return ErrBackendUnavailable
	}
	return nil
}
