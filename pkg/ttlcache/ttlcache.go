// Package ttlcache provides a small generic key/value cache whose entries
// expire a fixed duration after they were stored.
//
// Expired entries are treated as absent on read but are never swept; the
// cache is meant for per-session working sets whose key space stays small.
// There is no size bound and no LRU ordering.
package ttlcache

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a mutex-guarded TTL map. The zero value is not usable; call New.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     Clock
	entries map[string]entry[V]
}

// New creates a cache whose entries live for ttl. A nil clock uses time.Now.
func New[V any](ttl time.Duration, clock Clock) *Cache[V] {
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value stored under key. It reports a miss when the key is
// unknown or when more than the TTL has elapsed since it was stored.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(ent.storedAt) > c.ttl {
		return zero, false
	}
	return ent.value, true
}

// Set stores value under key, replacing any previous entry and restarting
// its TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
