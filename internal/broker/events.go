package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"cart-service/internal/models"
	"cart-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing cart domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("cart-%s", sessionID)
}

// PublishCartChanged publishes a committed cart change
func (ep *EventPublisher) PublishCartChanged(ctx context.Context, event *models.CartChangedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishCheckoutRequested publishes a checkout request
func (ep *EventPublisher) PublishCheckoutRequested(ctx context.Context, event *models.CheckoutRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// EventHandler routes incoming cart events to registered handlers
type EventHandler struct {
	onCartChanged       func(context.Context, *models.CartChangedEvent) error
	onCheckoutRequested func(context.Context, *models.CheckoutRequestedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCartChanged registers a handler for all cart change events
func (eh *EventHandler) OnCartChanged(handler func(context.Context, *models.CartChangedEvent) error) {
	eh.onCartChanged = handler
}

// OnCheckoutRequested registers a handler for checkout requests
func (eh *EventHandler) OnCheckoutRequested(handler func(context.Context, *models.CheckoutRequestedEvent) error) {
	eh.onCheckoutRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))
	util.EventsConsumedTotal.WithLabelValues(baseEvent.EventType).Inc()

	switch baseEvent.EventType {
	case models.EventTypeCartUpdated,
		models.EventTypeDiscountApplied,
		models.EventTypeCartCleared,
		models.EventTypeCartRestored:
		if eh.onCartChanged != nil {
			var event models.CartChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onCartChanged(ctx, &event)
		}

	case models.EventTypeCartCheckoutRequested:
		if eh.onCheckoutRequested != nil {
			var event models.CheckoutRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutRequested event: %w", err)
			}
			return eh.onCheckoutRequested(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
