// Package cache memoises search responses in Redis. Keys hash the normalized
// query plus the structural predicates; concurrent identical lookups are
// collapsed with singleflight. Any library mutation invalidates the whole
// keyspace; edits are rare relative to keystroke-driven queries, so a blunt
// flush is cheaper than tracking which queries an edit could affect.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cuebase/tracksearch/internal/tokenizer"
	"github.com/cuebase/tracksearch/pkg/config"
	pkgredis "github.com/cuebase/tracksearch/pkg/redis"
)

const keyPrefix = "tracksearch:"

// CachedResult is the stored shape of one search response.
type CachedResult struct {
	MatchedIDs []string `json:"matched_ids"`
	Total      int      `json:"total"`
}

// QueryCache is a read-through cache for search responses.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, playlist []string, missingOnly bool) (*CachedResult, bool) {
	key := c.buildKey(query, playlist, missingOnly)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var result CachedResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, playlist []string, missingOnly bool, result *CachedResult) {
	key := c.buildKey(query, playlist, missingOnly)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	playlist []string,
	missingOnly bool,
	computeFn func() (*CachedResult, error),
) (*CachedResult, bool, error) {
	if result, ok := c.Get(ctx, query, playlist, missingOnly); ok {
		return result, true, nil
	}
	key := c.buildKey(query, playlist, missingOnly)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, playlist, missingOnly); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, playlist, missingOnly, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*CachedResult), false, nil
}

// Invalidate drops every cached response. Called after any track mutation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, playlist []string, missingOnly bool) string {
	ids := make([]string, len(playlist))
	copy(ids, playlist)
	sort.Strings(ids)
	raw := fmt.Sprintf("%s|playlist=%s|missing=%t",
		tokenizer.Normalize(query), strings.Join(ids, ","), missingOnly)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
