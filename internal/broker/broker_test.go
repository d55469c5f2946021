package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cart-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_WriterConfig(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "cart-events")
	t.Cleanup(func() { _ = p.Close() })

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "cart-events", w.Topic)
	assert.Equal(t, publishBatchTimeout, w.BatchTimeout)
	assert.LessOrEqual(t, w.BatchTimeout, 50*time.Millisecond)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestEventPublisher_PublishCartChanged(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	event := &models.CartChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "e1",
			EventType: models.EventTypeCartUpdated,
			SessionID: "s1",
			Timestamp: time.Now(),
		},
		Operation: "add_item",
		Items:     []models.CartItemData{{ProductID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
	}
	require.NoError(t, pub.PublishCartChanged(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "cart-s1", string(w.msgs[0].Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "CART_UPDATED", decoded["event_type"])
	assert.Equal(t, "add_item", decoded["operation"])
}

func TestEventPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	err := pub.PublishCheckoutRequested(context.Background(), &models.CheckoutRequestedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", SessionID: "s1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestEventHandler_Routes(t *testing.T) {
	h := NewEventHandler()

	var changed []string
	var checkouts []string
	h.OnCartChanged(func(_ context.Context, e *models.CartChangedEvent) error {
		changed = append(changed, e.EventType)
		return nil
	})
	h.OnCheckoutRequested(func(_ context.Context, e *models.CheckoutRequestedEvent) error {
		checkouts = append(checkouts, e.IdempotencyKey)
		return nil
	})

	ctx := context.Background()
	for _, body := range []string{
		`{"event_id":"1","event_type":"CART_UPDATED"}`,
		`{"event_id":"2","event_type":"CART_CLEARED"}`,
		`{"event_id":"3","event_type":"CART_CHECKOUT_REQUESTED","idempotency_key":"k1"}`,
		`{"event_id":"4","event_type":"SOMETHING_ELSE"}`,
	} {
		require.NoError(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(body)}))
	}

	assert.Equal(t, []string{"CART_UPDATED", "CART_CLEARED"}, changed)
	assert.Equal(t, []string{"k1"}, checkouts)

	assert.Error(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`not json`)}))
}

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 2)}
	r.msgs <- kafka.Message{Offset: 1, Value: []byte("ok")}
	r.msgs <- kafka.Message{Offset: 2, Value: []byte("bad")}

	c := NewConsumerWithReader(r, "cart-events")
	ctx, cancel := context.WithCancel(context.Background())

	var seen sync.WaitGroup
	seen.Add(2)
	done := make(chan error, 1)
	go func() {
		done <- c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
			defer seen.Done()
			if string(msg.Value) == "bad" {
				return errors.New("handler failed")
			}
			return nil
		})
	}()

	seen.Wait()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int64{1}, r.Committed())
}
