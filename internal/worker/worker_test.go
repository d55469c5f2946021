package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cart-service/internal/models"
	"cart-service/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPurger struct {
	mock.Mock
}

func (m *mockPurger) DeleteExpired(ctx context.Context, olderThanSeconds int64) (int64, error) {
	args := m.Called(ctx, olderThanSeconds)
	return args.Get(0).(int64), args.Error(1)
}

func checkoutEvent(id string) *models.CheckoutRequestedEvent {
	return &models.CheckoutRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   id,
			EventType: models.EventTypeCartCheckoutRequested,
			SessionID: "s1",
			Timestamp: time.Now(),
		},
		IdempotencyKey: "k1",
		ItemCount:      2,
		Total:          decimal.RequireFromString("31.59"),
	}
}

func TestCartEventWorker_CheckoutDedup(t *testing.T) {
	dedup := store.NewMemory()
	w := NewCartEventWorker(nil, dedup)
	w.logger = zap.NewNop()
	ctx := context.Background()

	require.NoError(t, w.HandleCheckoutRequested(ctx, checkoutEvent("e1")))
	require.NoError(t, w.HandleCheckoutRequested(ctx, checkoutEvent("e1")))

	_, stored, err := dedup.RememberOnce(ctx, "event:e1", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored, "event id is remembered")
}

func TestCartEventWorker_RoutesThroughHandler(t *testing.T) {
	dedup := store.NewMemory()
	w := NewCartEventWorker(nil, dedup)
	w.logger = zap.NewNop()
	ctx := context.Background()

	body, err := json.Marshal(checkoutEvent("e7"))
	require.NoError(t, err)
	require.NoError(t, w.eventHandler.HandleMessage(ctx, kafkaMessage(body)))

	_, stored, err := dedup.RememberOnce(ctx, "event:e7", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestSnapshotJanitor_RunOnce(t *testing.T) {
	p := new(mockPurger)
	p.On("DeleteExpired", mock.Anything, int64(7200)).Return(int64(3), nil).Once()
	p.On("DeleteExpired", mock.Anything, int64(7200)).Return(int64(0), errors.New("db down")).Once()

	j := NewSnapshotJanitor(p, 2*time.Hour, time.Minute)
	j.logger = zap.NewNop()

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = j.RunOnce(context.Background())
	assert.Error(t, err)
	p.AssertExpectations(t)
}

func TestSnapshotJanitor_StartDisabled(t *testing.T) {
	j := NewSnapshotJanitor(new(mockPurger), 0, time.Minute)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor with zero ttl should return immediately")
	}
}

func kafkaMessage(body []byte) kafka.Message {
	return kafka.Message{Value: body}
}
