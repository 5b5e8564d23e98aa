// Package cache stores search results in Redis. Keys are namespaced by the
// corpus fingerprint, so results computed against different content never
// collide. The cache is an optimization: every failure degrades to a miss.
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
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/resilience"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	backend     Backend
	ttl         time.Duration
	fingerprint string
	breaker     *resilience.CircuitBreaker
	metrics     *metrics.Metrics
	group       singleflight.Group
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

// New creates a cache for results computed against the corpus identified by
// fingerprint. m may be nil.
func New(backend Backend, ttl time.Duration, fingerprint string, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		backend:     backend,
		ttl:         ttl,
		fingerprint: fingerprint,
		metrics:     m,
		logger:      slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

func (c *QueryCache) Get(ctx context.Context, req executor.Request) (*executor.SearchResult, bool) {
	key := c.buildKey(req)
	var data []byte
	found := false
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.recordMiss()
		return nil, false
	}

	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	result.Query = req.Query
	c.recordHit()
	c.logger.Debug("cache hit", "query", req.Query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, req executor.Request, result *executor.SearchResult) {
	key := c.buildKey(req)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes and stores it. Concurrent
// identical requests share one computation. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req executor.Request,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, req); ok {
		return result, true, nil
	}
	key := c.buildKey(req)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, req, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	shared := *val.(*executor.SearchResult)
	shared.Query = req.Query
	return &shared, false, nil
}

// Invalidate removes every cached search result, across all fingerprints.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(req executor.Request) string {
	raw := fmt.Sprintf("%s|k=%d|kinds=%s", normalizeQuery(req.Query), req.TopK, normalizeKinds(req.Kinds))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.fingerprint, hash[:16])
}

// normalizeQuery reduces a query to the terms the index sees, so that
// differently punctuated or cased queries share an entry.
func normalizeQuery(query string) string {
	return strings.Join(tokenizer.Terms(query), " ")
}

func normalizeKinds(kinds []corpus.Kind) string {
	names := make([]string, 0, len(kinds))
	seen := make(map[corpus.Kind]bool, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			names = append(names, string(k))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
