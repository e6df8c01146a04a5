package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

// CachedProvider wraps a WeatherProvider with a TTL-bounded LRU cache. Keys
// round coordinates to two decimals (roughly a kilometer), so every signal
// in the same neighborhood shares one upstream lookup.
type CachedProvider struct {
	inner domain.WeatherProvider
	ttl   time.Duration
	cache *lruCache
}

var _ domain.WeatherProvider = (*CachedProvider)(nil)

// NewCachedProvider creates a cache decorator around a weather provider.
func NewCachedProvider(inner domain.WeatherProvider, maxEntries int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		ttl:   ttl,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedProvider) Get(ctx context.Context, lat, lon float64) (domain.WeatherObservation, error) {
	key := fmt.Sprintf("%.2f,%.2f", lat, lon)
	if obs, ok := c.cache.get(key, domain.Now()); ok {
		return obs, nil
	}
	obs, err := c.inner.Get(ctx, lat, lon)
	if err != nil {
		return obs, err
	}
	c.cache.put(key, obs, domain.Now().Add(c.ttl))
	return obs, nil
}

// lruCache is a thread-safe LRU with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.WeatherObservation
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.WeatherObservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.WeatherObservation{}, false
	}
	if now.After(e.expiresAt) {
		c.removeEntry(e)
		return domain.WeatherObservation{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.WeatherObservation, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) removeEntry(e *entry) {
	delete(c.entries, e.key)
	c.remove(e)
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	c.removeEntry(c.tail)
}
