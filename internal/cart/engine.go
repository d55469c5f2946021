package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultQueueSize bounds the number of operations waiting for the engine.
const DefaultQueueSize = 64

// hydrateTimeout bounds the storage read made while creating an engine.
const hydrateTimeout = 5 * time.Second

// Operation names used in logs, spans, metrics and events.
const (
	OpAddItem        = "add_item"
	OpUpdateQuantity = "update_quantity"
	OpRemoveItem     = "remove_item"
	OpApplyDiscount  = "apply_discount"
	OpClearCart      = "clear_cart"
	OpUndo           = "undo"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPricing overrides the tax rate and shipping fee.
func WithPricing(p Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithDiscounts overrides the discount code table.
func WithDiscounts(t DiscountTable) Option {
	return func(e *Engine) { e.discounts = t }
}

// WithHistoryCapacity sets how many undo snapshots are kept.
func WithHistoryCapacity(n int) Option {
	return func(e *Engine) { e.history = NewHistory(n) }
}

// WithQueueSize sets the operation queue length.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithPublisher registers a receiver for committed changes.
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine owns the cart state of one session. All mutations run one at a time
// on the engine's goroutine in the order they were submitted; State may be
// read concurrently at any point, including while an operation is in flight.
type Engine struct {
	sessionID string
	backend   Backend
	storage   Storage
	publisher EventPublisher
	pricing   Pricing
	discounts DiscountTable
	logger    *zap.Logger
	queueSize int

	mu      sync.RWMutex
	state   models.CartState
	history *History

	submitMu sync.RWMutex
	closed   bool
	ops      chan *operation
	done     chan struct{}
}

type operation struct {
	ctx     context.Context
	run     func(ctx context.Context)
	pending *Pending
}

// NewEngine creates the engine for a session, hydrates it from storage and
// starts its worker goroutine. storage may be nil for an unpersisted cart.
// A storage read failure other than a missing or corrupt cart returns
// ErrStorageUnavailable and no engine. Cancelling ctx does not abort the read.
func NewEngine(ctx context.Context, sessionID string, backend Backend, storage Storage, opts ...Option) (*Engine, error) {
	e := &Engine{
		sessionID: sessionID,
		backend:   backend,
		storage:   storage,
		pricing:   DefaultPricing(),
		discounts: DefaultDiscounts(),
		history:   NewHistory(DefaultHistoryCapacity),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = util.GetLogger()
	}
	e.logger = e.logger.With(zap.String("session_id", sessionID))

	e.state = models.CartState{Totals: ComputeTotals(nil, decimal.Zero, e.pricing)}

	hydrateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	err := e.hydrate(hydrateCtx)
	cancel()
	if err != nil {
		return nil, err
	}

	e.ops = make(chan *operation, e.queueSize)
	e.done = make(chan struct{})
	go e.loop()

	return e, nil
}

// SessionID returns the session the engine belongs to.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// State returns a copy of the current cart state.
func (e *Engine) State() models.CartState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// CanUndo reports whether an undo snapshot is available.
func (e *Engine) CanUndo() bool {
	return e.HistoryLen() > 0
}

// HistoryLen returns the number of stored undo snapshots.
func (e *Engine) HistoryLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Len()
}

// AddItem adds quantity units of product, merging into an existing line item
// with the same id. A non-positive quantity is rejected with InvalidQuantity.
func (e *Engine) AddItem(ctx context.Context, product models.Product, quantity int) *Pending {
	return e.submit(ctx, func(ctx context.Context) {
		if quantity <= 0 {
			e.reject(OpAddItem, models.ErrKindInvalidQuantity)
			return
		}

		item := models.CartLineItem{
			ID:        product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			ImageRef:  product.Image,
		}

		e.mutate(ctx, mutation{
			name:     OpAddItem,
			errKind:  models.ErrKindAddFailed,
			snapshot: true,
			call: func(ctx context.Context) error {
				return e.backend.AddItem(ctx, e.sessionID, item)
			},
			apply: func(s *models.CartState) bool {
				if idx := s.FindItem(item.ID); idx >= 0 {
					s.Items[idx].Quantity += quantity
					return true
				}
				s.Items = append(s.Items, item)
				return true
			},
		})
	})
}

// UpdateQuantity sets the quantity of an item. A quantity of zero or less
// removes the item exactly like RemoveItem.
func (e *Engine) UpdateQuantity(ctx context.Context, itemID string, quantity int) *Pending {
	if quantity <= 0 {
		return e.RemoveItem(ctx, itemID)
	}

	return e.submit(ctx, func(ctx context.Context) {
		e.mutate(ctx, mutation{
			name:     OpUpdateQuantity,
			errKind:  models.ErrKindUpdateFailed,
			snapshot: true,
			call: func(ctx context.Context) error {
				return e.backend.UpdateQuantity(ctx, e.sessionID, itemID, quantity)
			},
			apply: func(s *models.CartState) bool {
				idx := s.FindItem(itemID)
				if idx < 0 {
					return false
				}
				s.Items[idx].Quantity = quantity
				return true
			},
		})
	})
}

// RemoveItem deletes the line item with the given id if present.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) *Pending {
	return e.submit(ctx, func(ctx context.Context) {
		e.mutate(ctx, mutation{
			name:     OpRemoveItem,
			errKind:  models.ErrKindRemoveFailed,
			snapshot: true,
			call: func(ctx context.Context) error {
				return e.backend.RemoveItem(ctx, e.sessionID, itemID)
			},
			apply: func(s *models.CartState) bool {
				idx := s.FindItem(itemID)
				if idx < 0 {
					return false
				}
				s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
				return true
			},
		})
	})
}

// ApplyDiscount resolves code against the discount table. An unknown code
// leaves the discount untouched and records InvalidDiscountCode.
// Discount changes are not recorded in the undo history.
func (e *Engine) ApplyDiscount(ctx context.Context, code string) *Pending {
	return e.submit(ctx, func(ctx context.Context) {
		e.mutate(ctx, mutation{
			name:     OpApplyDiscount,
			errKind:  models.ErrKindApplyDiscountFailed,
			snapshot: false,
			call: func(ctx context.Context) error {
				return e.backend.ApplyDiscount(ctx, e.sessionID, NormalizeCode(code))
			},
			apply: func(s *models.CartState) bool {
				discount, ok := e.discounts.Lookup(code)
				if !ok {
					util.DiscountRejectedTotal.Inc()
					e.logger.Info("Discount code rejected", zap.String("code", NormalizeCode(code)))
					s.Errors = append(s.Errors, NewCartError(models.ErrKindInvalidDiscountCode))
					return false
				}
				s.Discount = discount
				return true
			},
		})
	})
}

// ClearCart empties the cart in a single step without a backend round trip.
func (e *Engine) ClearCart(ctx context.Context) *Pending {
	return e.submit(ctx, func(ctx context.Context) {
		ctx, span := util.StartSpan(ctx, "CartEngine.ClearCart", e.sessionID)
		defer span.End()

		e.mu.Lock()
		e.history.Push(e.state)
		e.state = models.CartState{Totals: ComputeTotals(nil, decimal.Zero, e.pricing)}
		committed := e.state.Clone()
		e.mu.Unlock()

		util.CartOperationsTotal.WithLabelValues(OpClearCart, "committed").Inc()
		e.logger.Info("Cart cleared")
		e.afterCommit(ctx, OpClearCart, committed)
	})
}

// Undo restores the most recent snapshot verbatim. It is a no-op when the
// history is empty.
func (e *Engine) Undo(ctx context.Context) *Pending {
	return e.submit(ctx, func(ctx context.Context) {
		ctx, span := util.StartSpan(ctx, "CartEngine.Undo", e.sessionID)
		defer span.End()

		e.mu.Lock()
		previous, ok := e.history.Pop()
		if !ok {
			e.mu.Unlock()
			util.CartOperationsTotal.WithLabelValues(OpUndo, "noop").Inc()
			return
		}
		e.state = previous
		committed := e.state.Clone()
		e.mu.Unlock()

		util.CartUndoTotal.Inc()
		util.CartOperationsTotal.WithLabelValues(OpUndo, "committed").Inc()
		e.logger.Info("Cart restored from undo history", zap.Int("items", len(committed.Items)))
		e.afterCommit(ctx, OpUndo, committed)
	})
}

// Close stops accepting operations, waits for queued ones to finish and
// stops the engine goroutine. It is safe to call more than once.
func (e *Engine) Close() {
	e.submitMu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ops)
	}
	e.submitMu.Unlock()
	<-e.done
}

type mutation struct {
	name     string
	errKind  string
	snapshot bool
	call     func(ctx context.Context) error
	apply    func(s *models.CartState) bool
}

// mutate runs the snapshot, loading, backend call, commit sequence.
// Only the engine goroutine calls it.
func (e *Engine) mutate(ctx context.Context, m mutation) {
	ctx, span := util.StartSpan(ctx, "CartEngine."+m.name, e.sessionID)
	defer span.End()

	e.mu.Lock()
	if m.snapshot {
		e.history.Push(e.state)
	}
	e.state.IsLoading = true
	e.state.Errors = nil
	e.mu.Unlock()

	start := time.Now()
	err := m.call(ctx)
	util.CartBackendLatency.WithLabelValues(m.name).Observe(time.Since(start).Seconds())

	e.mu.Lock()
	e.state.IsLoading = false
	if err != nil {
		e.state.Errors = append(e.state.Errors, NewCartError(m.errKind))
		e.mu.Unlock()

		util.RecordError(span, err)
		util.CartOperationsTotal.WithLabelValues(m.name, "failed").Inc()
		e.logger.Warn("Cart operation failed",
			zap.String("operation", m.name),
			zap.Error(err))
		return
	}

	changed := m.apply(&e.state)
	if changed {
		e.state.Totals = ComputeTotals(e.state.Items, e.state.Discount.Amount, e.pricing)
	}
	committed := e.state.Clone()
	e.mu.Unlock()

	util.CartOperationsTotal.WithLabelValues(m.name, "committed").Inc()
	e.logger.Debug("Cart operation committed",
		zap.String("operation", m.name),
		zap.Bool("changed", changed),
		zap.String("total", committed.Totals.Total.StringFixed(2)))

	if changed {
		e.afterCommit(ctx, m.name, committed)
	}
}

// reject records a validation error without touching items or history.
func (e *Engine) reject(operation, kind string) {
	e.mu.Lock()
	e.state.Errors = []models.CartError{NewCartError(kind)}
	e.mu.Unlock()

	util.CartOperationsTotal.WithLabelValues(operation, "rejected").Inc()
	e.logger.Info("Cart operation rejected",
		zap.String("operation", operation),
		zap.String("reason", kind))
}

func (e *Engine) afterCommit(ctx context.Context, operation string, state models.CartState) {
	if e.storage != nil {
		if err := e.storage.Save(ctx, e.sessionID, state.Persisted()); err != nil {
			util.CartPersistFailuresTotal.WithLabelValues("save").Inc()
			e.logger.Error("Failed to persist cart",
				zap.String("operation", operation),
				zap.Error(err))
		}
	}

	if e.publisher == nil {
		return
	}

	event := &models.CartChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventTypeFor(operation),
			SessionID: e.sessionID,
			Timestamp: time.Now(),
		},
		Operation:    operation,
		Items:        models.ItemData(state.Items),
		DiscountCode: state.Discount.Code,
		Totals:       state.Totals,
	}

	if err := e.publisher.PublishCartChanged(ctx, event); err != nil {
		util.EventsPublishFailedTotal.Inc()
		e.logger.Error("Failed to publish cart event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

func eventTypeFor(operation string) string {
	switch operation {
	case OpApplyDiscount:
		return models.EventTypeDiscountApplied
	case OpClearCart:
		return models.EventTypeCartCleared
	case OpUndo:
		return models.EventTypeCartRestored
	default:
		return models.EventTypeCartUpdated
	}
}

// hydrate loads the persisted items and discount. A missing cart starts
// empty and a corrupt payload is logged and ignored; any other failure is
// returned.
func (e *Engine) hydrate(ctx context.Context) error {
	if e.storage == nil {
		return nil
	}

	saved, err := e.storage.Load(ctx, e.sessionID)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrCartNotFound):
		return nil
	case errors.Is(err, models.ErrCorruptCart):
		util.CartPersistFailuresTotal.WithLabelValues("decode").Inc()
		e.logger.Warn("Ignoring corrupt persisted cart", zap.Error(err))
		return nil
	default:
		util.CartPersistFailuresTotal.WithLabelValues("load").Inc()
		e.logger.Error("Failed to load persisted cart", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	items := make([]models.CartLineItem, 0, len(saved.Items))
	for _, item := range saved.Items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() {
			continue
		}
		items = append(items, item)
	}

	discount := models.DiscountState{Code: saved.DiscountCode, Amount: saved.DiscountAmount}
	if discount.Amount.IsNegative() {
		discount = models.DiscountState{}
	}

	e.state = models.CartState{
		Items:    items,
		Discount: discount,
		Totals:   ComputeTotals(items, discount.Amount, e.pricing),
	}

	e.logger.Info("Cart hydrated from storage",
		zap.Int("items", len(items)),
		zap.String("discount_code", discount.Code))
	return nil
}

func (e *Engine) loop() {
	defer close(e.done)
	for op := range e.ops {
		op.run(op.ctx)
		op.pending.complete(e.State(), nil)
	}
}

// submit enqueues run on the engine goroutine. Once enqueued the operation
// always runs to completion; the caller's cancellation only abandons the wait.
func (e *Engine) submit(ctx context.Context, run func(ctx context.Context)) *Pending {
	p := newPending()

	e.submitMu.RLock()
	defer e.submitMu.RUnlock()

	if e.closed {
		p.complete(models.CartState{}, ErrEngineClosed)
		return p
	}

	op := &operation{
		ctx:     context.WithoutCancel(ctx),
		run:     run,
		pending: p,
	}

	select {
	case e.ops <- op:
	case <-ctx.Done():
		p.complete(models.CartState{}, ctx.Err())
	}
	return p
}
