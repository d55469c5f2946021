package redisclient

import (
	"context"
	"testing"
	"time"

	"cart-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return Wrap(rdb, 24*time.Hour), mr
}

func sampleCart() *models.PersistedCart {
	return &models.PersistedCart{
		Items: []models.CartLineItem{
			{ID: "1", Name: "Wireless Headphones", UnitPrice: decimal.RequireFromString("199.99"), Quantity: 2, ImageRef: "h.jpg"},
		},
		DiscountCode:   "SAVE10",
		DiscountAmount: decimal.NewFromInt(10),
	}
}

func TestClient_SaveAndLoad(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "sess-1", sampleCart()))

	got, err := c.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "1", got.Items[0].ID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("199.99").Equal(got.Items[0].UnitPrice))
	assert.Equal(t, "SAVE10", got.DiscountCode)

	assert.Equal(t, 24*time.Hour, mr.TTL("cart:sess-1"))
}

func TestClient_StoredLayout(t *testing.T) {
	c, mr := setupTestRedis(t)

	require.NoError(t, c.Save(context.Background(), "sess-1", sampleCart()))

	raw, err := mr.Get("cart:sess-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"items": [{"id":"1","name":"Wireless Headphones","price":199.99,"quantity":2,"image":"h.jpg"}],
		"discountCode": "SAVE10",
		"discountAmount": 10
	}`, raw)
}

func TestClient_LoadNotFound(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, err := c.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrCartNotFound)
}

func TestClient_LoadCorrupt(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:sess-1", "{not json"))

	_, err := c.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, models.ErrCorruptCart)
}

func TestClient_LoadRedisDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.Load(context.Background(), "sess-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrCartNotFound)
}

func TestClient_RememberOnce(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	existing, stored, err := c.RememberOnce(ctx, "key-1", []byte("first"), time.Hour)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Nil(t, existing)

	existing, stored, err = c.RememberOnce(ctx, "key-1", []byte("second"), time.Hour)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, "first", string(existing))

	assert.Equal(t, time.Hour, mr.TTL("idempotency:key-1"))
}
