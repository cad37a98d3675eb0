package cache

import (
	"sync"
	"time"
)

// entry stores a cached value and its absolute expiration timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// SimpleCache is a map-backed cache with per-item TTL and an optional size
// bound. Expired entries are dropped lazily, on PurgeExpired, or when an
// insert would exceed MaxEntries.
type SimpleCache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]entry[V]
	maxEntries int
}

// Options controls construction of a SimpleCache.
type Options struct {
	// MaxEntries bounds the number of stored entries; 0 means unbounded.
	// Once the bound is hit, expired entries are purged first and the entry
	// closest to expiry is evicted if that is not enough.
	MaxEntries int
}

// NewSimpleCache constructs a new SimpleCache with the given options.
func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	return &SimpleCache[K, V]{
		items:      make(map[K]entry[V]),
		maxEntries: opts.MaxEntries,
	}
}

// now is a small indirection to allow test stubbing.
var now = time.Now

// Get implements Cache.Get.
func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(now()) {
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set.
func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value, ttl)
}

// Add implements Cache.Add.
func (c *SimpleCache[K, V]) Add(key K, value V, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && !e.expired(now()) {
		return false
	}
	c.store(key, value, ttl)
	return true
}

func (c *SimpleCache[K, V]) store(key K, value V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.makeRoom()
	}
	c.items[key] = entry[V]{value: value, expiresAt: exp}
}

// makeRoom must be called with mu held.
func (c *SimpleCache[K, V]) makeRoom() {
	c.purge(now())
	if len(c.items) < c.maxEntries {
		return
	}
	var (
		victim K
		soonest time.Time
		found   bool
	)
	for k, e := range c.items {
		if e.expiresAt.IsZero() {
			continue
		}
		if !found || e.expiresAt.Before(soonest) {
			victim, soonest, found = k, e.expiresAt, true
		}
	}
	if !found {
		for k := range c.items {
			victim = k
			break
		}
	}
	delete(c.items, victim)
}

// Delete implements Cache.Delete.
func (c *SimpleCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := now()
	count := 0
	for _, e := range c.items {
		if !e.expired(ts) {
			count++
		}
	}
	return count
}

// PurgeExpired implements Cache.PurgeExpired.
func (c *SimpleCache[K, V]) PurgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(now())
}

func (c *SimpleCache[K, V]) purge(at time.Time) {
	for k, e := range c.items {
		if e.expired(at) {
			delete(c.items, k)
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[any, any] = (*SimpleCache[any, any])(nil)
