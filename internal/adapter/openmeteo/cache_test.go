package openmeteo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result []domain.Location
}

func (m *countingGeocoder) Geocode(_ context.Context, _ domain.GeocodeQuery) ([]domain.Location, error) {
	m.calls++
	return m.result, nil
}

func parisResult() []domain.Location {
	return []domain.Location{{Name: "Paris", Country: "France", CountryCode: "FR", Latitude: 48.85341, Longitude: 2.3488}}
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: parisResult()}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	r1, err := cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	require.Len(t, r1, 1)

	r2, err := cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Paris", Country: "FR"})
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedGeocoder_KeyNormalizesCase(t *testing.T) {
	inner := &countingGeocoder{result: parisResult()}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Paris"})
	_, _ = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "  PARIS "})

	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: parisResult()}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Paris"})
	_, _ = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Lyon"})
	_, _ = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Paris", Country: "US"})

	assert.Equal(t, 3, inner.calls)
}

func TestCachedGeocoder_EmptyResultsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	r1, err := cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Nowhereville"})
	require.NoError(t, err)
	assert.Empty(t, r1)

	_, err = cached.Geocode(context.Background(), domain.GeocodeQuery{Name: "Nowhereville"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "empty results should stay retryable")
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", []domain.Location{{Name: "A"}})
	c.put("b", []domain.Location{{Name: "B"}})

	locs, ok := c.get("a")
	assert.True(t, ok)
	require.Len(t, locs, 1)
	assert.Equal(t, "A", locs[0].Name)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.Location{{Name: "A"}})
	c.put("b", []domain.Location{{Name: "B"}})
	c.put("c", []domain.Location{{Name: "C"}}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	locs, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", locs[0].Name)

	locs, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", locs[0].Name)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.Location{{Name: "A"}})
	c.put("b", []domain.Location{{Name: "B"}})

	// Access "a" to promote it
	c.get("a")

	// Inserting "c" should evict "b", the least recently used entry
	c.put("c", []domain.Location{{Name: "C"}})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.Location{{Name: "A1"}})
	c.put("a", []domain.Location{{Name: "A2"}})

	locs, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", locs[0].Name)
}
