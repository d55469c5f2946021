package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cart-service/internal/models"
)

// Load reads the persisted cart of a session
func (s *Store) Load(ctx context.Context, sessionID string) (*models.PersistedCart, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload,
		"SELECT payload FROM cart_snapshots WHERE session_id = $1", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return models.DecodePersistedCart([]byte(payload))
}

// Save upserts the persisted cart of a session
func (s *Store) Save(ctx context.Context, sessionID string, cart *models.PersistedCart) error {
	data, err := models.EncodePersistedCart(cart)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (session_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		sessionID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// DeleteExpired removes snapshots not touched since the cutoff
func (s *Store) DeleteExpired(ctx context.Context, olderThanSeconds int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_snapshots WHERE updated_at < NOW() - make_interval(secs => $1)", olderThanSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired carts: %w", err)
	}
	return res.RowsAffected()
}
