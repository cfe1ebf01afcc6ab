package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-assistant/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks that Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CartRepository returns a cart repository that expires idle carts after ttl.
// A zero ttl keeps carts forever.
func (c *Client) CartRepository(ttl time.Duration) *CartRepository {
	return &CartRepository{rdb: c.rdb, ttl: ttl}
}

// CartRepository stores cart lines as one JSON value per cart key.
type CartRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// Load returns the stored lines, or an empty slice when the key is missing
func (r *CartRepository) Load(ctx context.Context, key string) ([]models.CartLine, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.CartLine{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", key, err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode cart %s: %w", key, err)
	}
	return lines, nil
}

// Save overwrites the stored lines and refreshes the TTL
func (r *CartRepository) Save(ctx context.Context, key string, lines []models.CartLine) error {
	if lines == nil {
		lines = []models.CartLine{}
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart %s: %w", key, err)
	}

	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart %s: %w", key, err)
	}
	return nil
}
