package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCartUpdated           = "CART_UPDATED"
	EventTypeDiscountApplied       = "CART_DISCOUNT_APPLIED"
	EventTypeCartCleared           = "CART_CLEARED"
	EventTypeCartRestored          = "CART_RESTORED"
	EventTypeCartCheckoutRequested = "CART_CHECKOUT_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CartChangedEvent is published after a committed change to items or discount
type CartChangedEvent struct {
	BaseEvent
	Operation    string         `json:"operation"`
	Items        []CartItemData `json:"items"`
	DiscountCode string         `json:"discount_code,omitempty"`
	Totals       CartTotals     `json:"totals"`
}

// CheckoutRequestedEvent is published by the checkout stub
type CheckoutRequestedEvent struct {
	BaseEvent
	IdempotencyKey string          `json:"idempotency_key"`
	ItemCount      int             `json:"item_count"`
	Total          decimal.Decimal `json:"total"`
	Totals         CartTotals      `json:"totals"`
}

// CartItemData represents item data in events
type CartItemData struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemData converts line items to their event form
func ItemData(items []CartLineItem) []CartItemData {
	out := make([]CartItemData, 0, len(items))
	for _, item := range items {
		out = append(out, CartItemData{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}
