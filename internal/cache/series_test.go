package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock builder ---

type countingBuilder struct {
	calls int
	err   error
}

func (m *countingBuilder) Build(_ context.Context, in domain.SeriesInput) (domain.BuiltSeries, error) {
	m.calls++
	if m.err != nil {
		return domain.BuiltSeries{}, m.err
	}
	return domain.BuiltSeries{
		Name:   in.Name,
		Series: domain.CleanedSeries{{Day: "01", Month: "January", Temperature: float64(m.calls)}},
		Stats:  domain.CleanStats{Records: 1},
	}, nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func stacked(name string, temperature domain.Cell) domain.SeriesInput {
	return domain.SeriesInput{
		Name:    name,
		Records: []domain.LongRow{{Month: 1, Day: "01", Temperature: temperature}},
	}
}

// --- CachedBuilder tests ---

func TestCachedBuilder_CacheHit(t *testing.T) {
	inner := &countingBuilder{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedBuilder(inner, 10, metrics)

	first, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.NoError(t, err)
	second, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, first.Series.Values(), second.Series.Values())
	assert.InDelta(t, 1.0, counterValue(t, metrics.SeriesCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1.0, counterValue(t, metrics.SeriesCache.WithLabelValues("miss")), 0)
}

func TestCachedBuilder_NameIgnoredInKey(t *testing.T) {
	inner := &countingBuilder{}
	cached := NewCachedBuilder(inner, 10, nil)

	_, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.NoError(t, err)
	renamed, err := cached.Build(context.Background(), stacked("lyon", "4"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "lyon", renamed.Name)
}

func TestCachedBuilder_DifferentDataMiss(t *testing.T) {
	inner := &countingBuilder{}
	cached := NewCachedBuilder(inner, 10, nil)

	_, _ = cached.Build(context.Background(), stacked("paris", "4"))
	_, _ = cached.Build(context.Background(), stacked("paris", "5"))

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedBuilder_ErrorsNotCached(t *testing.T) {
	inner := &countingBuilder{err: errors.New("boom")}
	cached := NewCachedBuilder(inner, 10, nil)

	_, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.Error(t, err)
	_, err = cached.Build(context.Background(), stacked("paris", "4"))
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedBuilder_HitReturnsCopy(t *testing.T) {
	cached := NewCachedBuilder(&countingBuilder{}, 10, nil)

	first, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.NoError(t, err)
	first.Series[0].Temperature = 99

	second, err := cached.Build(context.Background(), stacked("paris", "4"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.Series[0].Temperature)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(stacked("a", "1"))
	require.NoError(t, err)
	b, err := Fingerprint(stacked("b", "1"))
	require.NoError(t, err)
	c, err := Fingerprint(stacked("a", "2"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3)

	c.put("a", "A")
	c.put("b", "B")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[int](2)

	c.put("a", 1)
	c.put("b", 2)
	c.get("a")
	c.put("c", 3)

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result)
	assert.Equal(t, 1, c.size())
}
