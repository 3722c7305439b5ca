// Package redis backs the query-result cache with go-redis/v9. The surface
// is what the cache needs: get, set with TTL, and flushing every key under
// the cache prefix when the library mutates.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuebase/tracksearch/pkg/config"
)

// scanBatch is the COUNT hint for SCAN during invalidation.
const scanBatch = 100

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the string value for the given key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a value with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern deletes every key matching the glob pattern and returns
// how many were removed. SCAN keeps the walk incremental; the matched keys
// are deleted in one DEL so invalidation is a single round trip at the end.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return deleted, fmt.Errorf("deleting %d keys: %w", len(keys), err)
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis key-not-found.
func IsNilError(err error) bool {
	return err == redis.Nil
}

// Ping checks connectivity, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
