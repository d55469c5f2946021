package cart

import (
	"context"

	"cart-service/internal/models"
)

// Storage persists the items and discount of a session's cart.
// Load returns models.ErrCartNotFound when nothing was saved and
// models.ErrCorruptCart when the stored payload cannot be decoded.
type Storage interface {
	Load(ctx context.Context, sessionID string) (*models.PersistedCart, error)
	Save(ctx context.Context, sessionID string, cart *models.PersistedCart) error
}

// EventPublisher receives committed cart changes.
type EventPublisher interface {
	PublishCartChanged(ctx context.Context, event *models.CartChangedEvent) error
}
