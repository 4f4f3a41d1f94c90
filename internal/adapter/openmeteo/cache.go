package openmeteo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vigimeteo/meteo-etl/internal/domain"
	"github.com/vigimeteo/meteo-etl/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Place names
// are looked up repeatedly with the same spelling, so even a small cache
// removes most geocoding traffic.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder wraps inner with a cache holding up to capacity entries.
func NewCachedGeocoder(inner domain.Geocoder, capacity int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(capacity),
		metrics: metrics,
	}
}

// Geocode returns cached results when the same query was resolved before,
// otherwise delegates to the wrapped geocoder.
func (g *CachedGeocoder) Geocode(ctx context.Context, q domain.GeocodeQuery) ([]domain.Location, error) {
	key := cacheKey(q)
	if locs, ok := g.cache.get(key); ok {
		g.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return locs, nil
	}
	g.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	locs, err := g.inner.Geocode(ctx, q)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so a name that resolves to nothing can
	// still be retried later.
	if len(locs) > 0 {
		g.cache.put(key, locs)
	}
	return locs, nil
}

func cacheKey(q domain.GeocodeQuery) string {
	return fmt.Sprintf("%s|%s|%s|%d",
		strings.ToLower(strings.TrimSpace(q.Name)),
		strings.ToLower(q.Country),
		strings.ToLower(q.Language),
		q.Count,
	)
}

// lruCache is a fixed-capacity LRU cache for geocoding results. The map
// gives O(1) lookup and the doubly linked list tracks recency, most recent
// at the head.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*lruEntry
	head     *lruEntry
	tail     *lruEntry
}

type lruEntry struct {
	key       string
	locations []domain.Location
	prev      *lruEntry
	next      *lruEntry
}

func newLRUCache(capacity int) *lruCache {
	if capacity < 1 {
		capacity = 1
	}
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*lruEntry, capacity),
	}
}

func (c *lruCache) get(key string) ([]domain.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(entry)
	return entry.locations, true
}

func (c *lruCache) put(key string, locations []domain.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.locations = locations
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry{key: key, locations: locations}
	c.entries[key] = entry
	c.addToFront(entry)

	if len(c.entries) > c.capacity {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(entry *lruEntry) {
	if c.head == entry {
		return
	}
	c.remove(entry)
	c.addToFront(entry)
}

func (c *lruCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head
	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry
	if c.tail == nil {
		c.tail = entry
	}
}

func (c *lruCache) remove(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	c.remove(evicted)
	delete(c.entries, evicted.key)
}
