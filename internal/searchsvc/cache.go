// Package searchsvc exposes the search engine over HTTP, with a Redis query
// cache in front of it. Queries are read-only against an immutable index, so
// cached rankings stay valid until the next rebuild.
package searchsvc

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/specimen-curation/labelsearch/pkg/config"
	"github.com/specimen-curation/labelsearch/pkg/metrics"
	pkgredis "github.com/specimen-curation/labelsearch/pkg/redis"
)

const keyPrefix = "labelsearch:"

// QueryCache caches ranked results in Redis keyed by the full query shape.
// Concurrent identical queries collapse into one computation.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewQueryCache creates a cache over an open Redis client. metrics may be
// nil.
func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// CacheKey identifies one query shape. Every field participates in the key:
// two queries differing only in date filter or threshold must not share an
// entry.
type CacheKey struct {
	Query     string
	Scoring   string
	Exact     bool
	Date      string
	Threshold float64
	Limit     int
}

func (c *QueryCache) buildKey(k CacheKey) string {
	raw := fmt.Sprintf("%s|%s|%t|%s|%g|%d",
		k.Query, k.Scoring, k.Exact, k.Date, k.Threshold, k.Limit)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

// Get returns a cached response if present.
func (c *QueryCache) Get(ctx context.Context, k CacheKey) (*SearchResponse, bool) {
	key := c.buildKey(k)
	data, found, err := c.client.Fetch(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found || err != nil {
		c.miss()
		return nil, false
	}
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &resp, true
}

// Set stores a response under the query's key.
func (c *QueryCache) Set(ctx context.Context, k CacheKey, resp *SearchResponse) {
	key := c.buildKey(k)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Store(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes and stores it,
// deduplicating concurrent identical queries.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	k CacheKey,
	computeFn func() (*SearchResponse, error),
) (*SearchResponse, bool, error) {
	if resp, ok := c.Get(ctx, k); ok {
		return resp, true, nil
	}
	key := c.buildKey(k)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, k); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, k, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*SearchResponse), false, nil
}

// Invalidate drops every cached query, for use after an index rebuild.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
