package cart

import (
	"context"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/util"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerBackend stops calling a failing backend after a run of consecutive
// failures. While open every call fails fast with gobreaker.ErrOpenState,
// which the engine records like any other backend failure.
type BreakerBackend struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps next with a circuit breaker that opens after
// maxFailures consecutive failures and probes again after openTimeout.
func NewBreakerBackend(next Backend, maxFailures int, openTimeout time.Duration) *BreakerBackend {
	logger := util.GetLogger()
	st := gobreaker.Settings{
		Name:        "cart-backend",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			util.BackendBreakerTransitionsTotal.WithLabelValues(to.String()).Inc()
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerBackend{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker state
func (b *BreakerBackend) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerBackend) AddItem(ctx context.Context, sessionID string, item models.CartLineItem) error {
	return b.call(func() error { return b.next.AddItem(ctx, sessionID, item) })
}

func (b *BreakerBackend) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) error {
	return b.call(func() error { return b.next.UpdateQuantity(ctx, sessionID, itemID, quantity) })
}

func (b *BreakerBackend) RemoveItem(ctx context.Context, sessionID, itemID string) error {
	return b.call(func() error { return b.next.RemoveItem(ctx, sessionID, itemID) })
}

func (b *BreakerBackend) ApplyDiscount(ctx context.Context, sessionID, code string) error {
	return b.call(func() error { return b.next.ApplyDiscount(ctx, sessionID, code) })
}

func (b *BreakerBackend) call(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
