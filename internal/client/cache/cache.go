// Package cache implements a bounded-lifetime response cache for API reads.
//
// Entries expire after a per-entry TTL and are evicted lazily on read.
// Invalidation is explicit: after a mutation, callers remove every key the
// mutation could have staled via ClearByPrefix. The cache never inspects
// payloads and never learns of writes on its own.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called without an explicit TTL.
const DefaultTTL = 30 * time.Second

type entry struct {
	payload   any
	createdAt time.Time
	expiresAt time.Time
}

type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	// now is a test seam for the clock.
	now func() time.Time
}

func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the payload stored under key, or (nil, false) when the key is
// absent or its entry has expired. Expired entries are evicted on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// the entry may have been overwritten while the lock was released
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the default TTL, overwriting any
// existing entry.
func (c *Cache) Set(key string, payload any) {
	c.SetWithTTL(key, payload, c.defaultTTL)
}

// SetWithTTL stores payload under key with an explicit TTL.
func (c *Cache) SetWithTTL(key string, payload any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// ClearByPrefix evicts every key starting with prefix and reports how many
// entries were removed.
func (c *Cache) ClearByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, including not-yet-evicted
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
