package store

import (
	"context"
	"os"
	"testing"

	"cart-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	s, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_CartRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	cart := &models.PersistedCart{
		Items:          []models.CartLineItem{{ID: "1", Name: "Wireless Headphones", UnitPrice: decimal.RequireFromString("199.99"), Quantity: 1}},
		DiscountCode:   "SAVE10",
		DiscountAmount: decimal.NewFromInt(10),
	}
	require.NoError(t, s.Save(ctx, "it-session", cart))

	cart.Items[0].Quantity = 3
	require.NoError(t, s.Save(ctx, "it-session", cart))

	got, err := s.Load(ctx, "it-session")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, "SAVE10", got.DiscountCode)

	_, err = s.Load(ctx, "it-missing")
	assert.ErrorIs(t, err, models.ErrCartNotFound)
}

func TestStore_Products(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedProducts(ctx, []models.Product{
		{ID: "it-1", Name: "Mug", Price: decimal.RequireFromString("24.99")},
	}))

	p, err := s.GetProductByID(ctx, "it-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("24.99").Equal(p.Price))

	_, err = s.GetProductByID(ctx, "it-none")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}
