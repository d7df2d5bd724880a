package assets

import (
	"context"
	"sync"
)

// Cache is an in-memory byte cache keyed by URL.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear drops every entry and resets the stats.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// CachedSource serves repeat fetches of the same URL from memory. Static
// per-library assets such as vegetation geometry are shared by every study
// area, so switching areas only refetches the rasters. Failures are not cached.
type CachedSource struct {
	Source Source
	Cache  *Cache
}

// NewCachedSource wraps src with an empty cache.
func NewCachedSource(src Source) *CachedSource {
	return &CachedSource{Source: src, Cache: NewCache()}
}

// Fetch implements Source.
func (s *CachedSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := s.Cache.Get(url); ok {
		return data, nil
	}
	data, err := s.Source.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(url, data)
	return data, nil
}
