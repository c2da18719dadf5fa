// file: internal/cache/cache.go
// version: 2.1.0
// guid: 30605504-b902-4a8b-9883-4640fca7c202

package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a generic TTL cache safe for concurrent use. A cache built with a
// non-positive TTL stores nothing, so callers can keep a single code path.
// Expired entries are dropped when read, and Set sweeps the whole map at most
// once per TTL, so keys that are never read again do not accumulate.
type Cache[T any] struct {
	mu        sync.RWMutex
	items     map[string]entry[T]
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// New creates a cache whose entries live for ttl.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Enabled reports whether Set will retain anything.
func (c *Cache[T]) Enabled() bool {
	return c != nil && c.ttl > 0
}

// Get retrieves a value if it exists and hasn't expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if !c.Enabled() {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if now := c.now(); now.After(e.expiresAt) {
		c.mu.Lock()
		// Another goroutine may have stored a fresh value in the meantime.
		if cur, ok := c.items[key]; ok && now.After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the cache TTL.
func (c *Cache[T]) Set(key string, value T) {
	if !c.Enabled() {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= c.ttl {
		c.deleteExpiredLocked(now)
		c.lastSweep = now
	}
	c.items[key] = entry[T]{value: value, expiresAt: now.Add(c.ttl)}
}

// Invalidate removes a single key.
func (c *Cache[T]) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeleteExpired drops every expired entry and returns how many were removed.
func (c *Cache[T]) DeleteExpired() int {
	if c == nil {
		return 0
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteExpiredLocked(now)
}

func (c *Cache[T]) deleteExpiredLocked(now time.Time) int {
	removed := 0
	for k, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
