// Package cache is a small in-process TTL cache.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values that expire after a TTL
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

// New creates an empty cache
func New[V any]() *Cache[V] {
	return &Cache[V]{items: map[string]entry[V]{}, now: time.Now}
}

// Set stores value under key for ttl
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Get returns the value under key if it has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes every key starting with prefix
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}
