// Package cache memoizes cleaned series so repeated requests for the same
// source data skip reshaping and cleaning.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
)

// CachedBuilder wraps a SeriesBuilder with an in-memory LRU cache keyed by
// the content of the input.
type CachedBuilder struct {
	inner   domain.SeriesBuilder
	cache   *lruCache[domain.BuiltSeries]
	metrics *observability.Metrics
}

// NewCachedBuilder creates a cache decorator around a builder. metrics may be nil.
func NewCachedBuilder(inner domain.SeriesBuilder, maxEntries int, metrics *observability.Metrics) *CachedBuilder {
	return &CachedBuilder{
		inner:   inner,
		cache:   newLRUCache[domain.BuiltSeries](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedBuilder) Build(ctx context.Context, in domain.SeriesInput) (domain.BuiltSeries, error) {
	key, err := Fingerprint(in)
	if err != nil {
		return c.inner.Build(ctx, in)
	}
	if built, ok := c.cache.get(key); ok {
		c.observe("hit")
		built.Name = in.Name
		built.Series = slices.Clone(built.Series)
		return built, nil
	}
	c.observe("miss")

	built, err := c.inner.Build(ctx, in)
	if err != nil {
		return built, err
	}
	c.cache.put(key, domain.BuiltSeries{Series: slices.Clone(built.Series), Stats: built.Stats})
	return built, nil
}

// Len is the number of cached series.
func (c *CachedBuilder) Len() int {
	return c.cache.size()
}

func (c *CachedBuilder) observe(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SeriesCache.WithLabelValues(result).Inc()
}

// Fingerprint hashes everything in the input except its name, so the same
// data submitted under two names shares one cache entry.
func Fingerprint(in domain.SeriesInput) (string, error) {
	in.Name = ""
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("fingerprint series input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
