package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process TokenCache with background expiry
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a memory cache. A zero ttl passed to Set uses defaultTTL.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the unexpired token stored under key
func (c *MemoryCache) Get(key string) (string, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

// Set stores a token. ttl 0 means the cache default.
func (c *MemoryCache) Set(key string, token string, ttl time.Duration) {
	c.cache.Set(key, token, ttl)
}

// Delete drops a token, e.g. after the API rejected it
func (c *MemoryCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes every token
func (c *MemoryCache) Clear() {
	c.cache.Flush()
}

// Len returns the number of stored tokens, including expired ones not yet evicted
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
