// Package cache memoizes search results keyed by the parsed query plan.
// Redis is the shared backend; when it is unreachable the service falls
// back to a bounded in-process LRU with the same TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/SojoC/PPAM-WEB-APP/internal/search/engine"
	"github.com/SojoC/PPAM-WEB-APP/internal/search/parser"
	"github.com/SojoC/PPAM-WEB-APP/pkg/metrics"
	pkgredis "github.com/SojoC/PPAM-WEB-APP/pkg/redis"
)

const keyPrefix = "search:"

// Backend stores encoded results.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Flush removes every cached result and returns how many were removed.
	Flush(ctx context.Context) (int64, error)
}

// Stats reports hit and miss counts since the cache was created.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// QueryCache stores encoded search results in a Backend and collapses
// concurrent misses for the same query into one computation.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	// gen is bumped by Invalidate; results computed across a bump are
	// returned but not stored.
	gen atomic.Uint64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
}

// Get returns the cached result for query. Backend errors count as misses.
func (c *QueryCache) Get(ctx context.Context, query string) (*engine.Result, bool) {
	key := buildKey(query)
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var result engine.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

// Set stores result. Degraded results are not cached, so corrected answers
// replace them as soon as an index is available.
func (c *QueryCache) Set(ctx context.Context, query string, result *engine.Result) {
	if result.Degraded {
		return
	}
	key := buildKey(query)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for query or computes it once for
// all concurrent callers of the same query plan. The boolean reports a
// cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	computeFn func() (*engine.Result, error),
) (*engine.Result, bool, error) {
	if result, ok := c.Get(ctx, query); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(query), func() (any, error) {
		gen := c.gen.Load()
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		if c.gen.Load() != gen {
			c.logger.Debug("result outlived an invalidation, not caching", "query", query)
			return result, nil
		}
		c.Set(ctx, query, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.Result), false, nil
}

// Invalidate drops every cached result. Computations already in flight
// will not store theirs.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	deleted, err := c.backend.Flush(ctx)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counters of this process.
func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Backend: c.backend.Name(), Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
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

// buildKey hashes the parsed plan rather than the raw text, so two queries
// share a key exactly when they parse to the same codes and terms.
func buildKey(query string) string {
	plan := parser.Parse(query)
	h := sha256.New()
	if plan.Browse {
		h.Write([]byte("browse"))
	}
	for _, c := range plan.Clauses {
		fmt.Fprintf(h, "%q%q;", c.Codes, c.Terms)
	}
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}

// RedisBackend keeps results in Redis under the search: prefix.
type RedisBackend struct {
	client *pkgredis.Client
}

func NewRedisBackend(client *pkgredis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl)
}

func (b *RedisBackend) Flush(ctx context.Context) (int64, error) {
	return b.client.FlushByPattern(ctx, keyPrefix+"*")
}

// LocalBackend is a process-local expirable LRU. Its TTL is fixed at
// construction.
type LocalBackend struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocalBackend(size int, ttl time.Duration) *LocalBackend {
	if size <= 0 {
		size = 1024
	}
	return &LocalBackend{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := b.lru.Get(key)
	return data, ok, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.lru.Add(key, value)
	return nil
}

func (b *LocalBackend) Flush(_ context.Context) (int64, error) {
	n := int64(b.lru.Len())
	b.lru.Purge()
	return n, nil
}
