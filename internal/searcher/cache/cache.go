// Package cache memoises search results in Redis. Keys include the index
// generation, so publishing a new index makes every older entry unreachable
// without an explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache uses. A miss is
// reported with an error for which pkgredis.IsNilError is true.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one search. Terms should be the parsed query terms.
type Key struct {
	Generation string
	Terms      []string
	Limit      int
	Filters    map[string]string
}

// String renders the key. Term order does not affect scores, so terms are
// sorted before hashing. The hashed material is JSON so that separators
// inside terms or filter values cannot make two keys collide.
func (k Key) String() string {
	terms := slices.Clone(k.Terms)
	slices.Sort(terms)
	filters := make([][2]string, 0, len(k.Filters))
	for _, field := range slices.Sorted(maps.Keys(k.Filters)) {
		filters = append(filters, [2]string{field, k.Filters[field]})
	}
	material, _ := json.Marshal(struct {
		Terms   []string    `json:"t"`
		Limit   int         `json:"l"`
		Filters [][2]string `json:"f"`
	}{terms, k.Limit, filters})
	hash := sha256.Sum256(material)
	gen := k.Generation
	if len(gen) > 16 {
		gen = gen[:16]
	}
	return fmt.Sprintf("%s%s:%x", keyPrefix, gen, hash[:16])
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

type QueryCache struct {
	client Backend
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key Key) (*executor.SearchResult, bool) {
	k := key.String()
	data, err := c.client.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", k)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, result *executor.SearchResult) {
	k := key.String()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.client.Set(ctx, k, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns a cached result or runs computeFn once per key across
// concurrent callers. Errors are never cached.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	val, err, shared := c.group.Do(key.String(), func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := val.(*executor.SearchResult)
	if shared {
		// Every caller of a shared flight gets its own copy.
		result = result.Clone()
	}
	return result, false, nil
}

// Invalidate removes every cached search, whatever its generation.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.DeleteMatching(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}
