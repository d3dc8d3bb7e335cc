// Package cache keeps recently fetched page bodies for a short time.
package cache

import (
	"sync"
	"time"
)

// entry holds a cached page body with its creation timestamp.
type entry struct {
	body      []byte
	createdAt time.Time
}

// Cache is a small in-memory cache of fetched page bodies keyed by URL.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries bodies, each valid for
// maxAge. A non-positive maxAge disables caching.
func New(maxEntries int, maxAge time.Duration) *Cache {
	return &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Get returns the cached body for key if it is younger than maxAge.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil || c.maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.maxAge {
		return nil, false
	}
	return e.body, true
}

// Set stores body under key. Expired entries are dropped first; if the cache
// is still at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, body []byte) {
	if c == nil || c.maxAge <= 0 || c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.store {
		if now.Sub(e.createdAt) > c.maxAge {
			delete(c.store, k)
		}
	}

	// Map iteration order is random in Go.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{body: body, createdAt: now}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
