// Package cache is a small in-memory TTL cache for raw upstream responses.
// A dashboard refresh inside the TTL window reuses the cached body instead
// of re-hitting the public API. The clock is injected so expiry is
// testable without sleeping.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a collector may reuse an upstream response.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a TTL-bound byte cache keyed by request signature. Safe for
// concurrent use. Expired entries are dropped lazily on lookup and in
// bulk via Purge.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// New creates a cache with the given TTL, falling back to DefaultTTL when
// ttl is zero or negative.
func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a cache with an explicit clock.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key if it has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for one TTL window from now.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Purge drops every expired entry and reports how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
