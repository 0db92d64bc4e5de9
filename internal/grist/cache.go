package grist

import (
	"sync"
	"time"
)

// memoryCache is a TTL cache for metadata responses. It is deliberately
// in-process and per-client: the document is the source of truth, so
// cached metadata must never outlive the process, and any mutation to the
// document clears it wholesale.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]cacheEntry)}
}

// Get retrieves a value, treating expired entries as misses.
func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

// Set stores a value. A ttl of zero means the entry never expires on its
// own (it still falls to Clear).
func (c *memoryCache) Set(key string, data []byte, ttl time.Duration) {
	entry := cacheEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *memoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
