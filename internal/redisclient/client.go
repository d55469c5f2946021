package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const cartKeyPrefix = "cart:"

type Client struct {
	rdb     *redis.Client
	cartTTL time.Duration
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int, cartTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb, cartTTL), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client, cartTTL time.Duration) *Client {
	return &Client{rdb: rdb, cartTTL: cartTTL}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Load reads the persisted cart of a session
func (c *Client) Load(ctx context.Context, sessionID string) (*models.PersistedCart, error) {
	data, err := c.rdb.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrCartNotFound
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	return models.DecodePersistedCart(data)
}

// Save writes the persisted cart of a session and refreshes its TTL
func (c *Client) Save(ctx context.Context, sessionID string, cart *models.PersistedCart) error {
	data, err := models.EncodePersistedCart(cart)
	if err != nil {
		return err
	}

	if err := c.rdb.Set(ctx, cartKeyPrefix+sessionID, data, c.cartTTL).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// RememberOnce stores value under an idempotency key unless one is already
// present. It returns the previously stored value when the key existed.
func (c *Client) RememberOnce(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	fullKey := fmt.Sprintf("idempotency:%s", key)

	stored, err := c.rdb.SetNX(ctx, fullKey, value, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx idempotency key: %w", err)
	}
	if stored {
		return nil, true, nil
	}

	existing, err := c.rdb.Get(ctx, fullKey).Bytes()
	if err != nil {
		return nil, false, fmt.Errorf("redis get idempotency key: %w", err)
	}
	return existing, false, nil
}
