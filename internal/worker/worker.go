package worker

import (
	"context"
	"fmt"
	"time"

	"cart-service/internal/broker"
	"cart-service/internal/models"
	"cart-service/internal/util"

	"go.uber.org/zap"
)

// processedEventTTL bounds how long consumed event ids are remembered
const processedEventTTL = 24 * time.Hour

// EventDeduplicator remembers which events were already processed
type EventDeduplicator interface {
	RememberOnce(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error)
}

// CartEventWorker consumes cart events from Kafka. Checkout requests are
// acknowledged and logged; fulfilment is outside this service.
type CartEventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	dedup        EventDeduplicator
	logger       *zap.Logger
}

// NewCartEventWorker creates a new cart event worker
func NewCartEventWorker(consumer *broker.Consumer, dedup EventDeduplicator) *CartEventWorker {
	w := &CartEventWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		dedup:        dedup,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnCartChanged(w.HandleCartChanged)
	w.eventHandler.OnCheckoutRequested(w.HandleCheckoutRequested)

	return w
}

// Start starts the worker
func (w *CartEventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cart event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CartEventWorker) Stop() error {
	w.logger.Info("Stopping cart event worker")
	return w.consumer.Close()
}

// HandleCartChanged records a committed cart change
func (w *CartEventWorker) HandleCartChanged(ctx context.Context, event *models.CartChangedEvent) error {
	w.logger.Debug("Cart changed",
		zap.String("session_id", event.SessionID),
		zap.String("operation", event.Operation),
		zap.Int("items", len(event.Items)),
		zap.String("total", event.Totals.Total.StringFixed(2)))
	return nil
}

// HandleCheckoutRequested acknowledges a checkout request once per event id
func (w *CartEventWorker) HandleCheckoutRequested(ctx context.Context, event *models.CheckoutRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "CartEventWorker.HandleCheckoutRequested", event.SessionID)
	defer span.End()

	first, err := w.markProcessed(ctx, event.EventID)
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	if !first {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Info("Checkout received",
		zap.String("session_id", event.SessionID),
		zap.String("checkout_id", event.EventID),
		zap.Int("item_count", event.ItemCount),
		zap.String("total", event.Total.StringFixed(2)))
	return nil
}

func (w *CartEventWorker) markProcessed(ctx context.Context, eventID string) (bool, error) {
	if w.dedup == nil {
		return true, nil
	}

	_, stored, err := w.dedup.RememberOnce(ctx, "event:"+eventID, []byte("1"), processedEventTTL)
	if err != nil {
		return false, fmt.Errorf("failed to check event processed: %w", err)
	}
	return stored, nil
}

// SnapshotPurger deletes persisted carts that were not saved for a while
type SnapshotPurger interface {
	DeleteExpired(ctx context.Context, olderThanSeconds int64) (int64, error)
}

// SnapshotJanitor periodically purges expired cart snapshots
type SnapshotJanitor struct {
	purger   SnapshotPurger
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewSnapshotJanitor creates a janitor removing snapshots older than ttl
func NewSnapshotJanitor(purger SnapshotPurger, ttl, interval time.Duration) *SnapshotJanitor {
	return &SnapshotJanitor{
		purger:   purger,
		ttl:      ttl,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// RunOnce purges expired snapshots a single time
func (j *SnapshotJanitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.purger.DeleteExpired(ctx, int64(j.ttl.Seconds()))
	if err != nil {
		util.CartPersistFailuresTotal.WithLabelValues("purge").Inc()
		return 0, fmt.Errorf("failed to purge cart snapshots: %w", err)
	}
	if n > 0 {
		j.logger.Info("Purged expired cart snapshots", zap.Int64("count", n))
	}
	return n, nil
}

// Start purges on every tick until ctx is cancelled
func (j *SnapshotJanitor) Start(ctx context.Context) {
	if j.ttl <= 0 || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error("Snapshot janitor failed", zap.Error(err))
			}
		}
	}
}
