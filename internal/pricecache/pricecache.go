package pricecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps each auction's current price in Redis so the admission hot
// path can reject too-low bids without touching the primary store. Postgres
// stays authoritative; a stale or missing entry is always re-verified before
// a rejection.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: rdb, ttl: time.Hour}, nil
}

func key(auctionID string) string {
	return fmt.Sprintf("auction:%s:current_price", auctionID)
}

// Get returns the cached price and whether an entry exists.
func (c *Cache) Get(ctx context.Context, auctionID string) (float64, bool, error) {
	price, err := c.client.Get(ctx, key(auctionID)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get cached price: %w", err)
	}
	return price, true, nil
}

// Set records the auction's current price.
func (c *Cache) Set(ctx context.Context, auctionID string, price float64) error {
	if err := c.client.Set(ctx, key(auctionID), price, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
