package cache

import (
	"sync"
	"time"
)

// Clock supplies the current time. Injecting it keeps TTL behavior
// deterministic under test; production code passes time.Now.
type Clock func() time.Time

// Cache is a key/value store with per-entry expiry. It replaces the ad hoc
// module-level maps with TTL fields that tend to accrete around market data
// fetching, so callers can share one abstraction and tests can control time.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Evict(key string)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is an in-process Cache implementation, safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     Clock
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty cache reading time from the given clock.
func NewMemoryCache(now Clock) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the value stored under key, or false if it is absent or its
// TTL has elapsed. Expired entries are removed lazily on the next Set.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the given ttl. A ttl of zero or less
// stores an already-expired entry, which Get will never return.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Evict removes the entry for key, if present.
func (c *MemoryCache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
