// Package urlcache provides the TTL-keyed cache of resolved unrestricted
// URLs sitting in front of the provider resolve path, wrapping
// patrickmn/go-cache the way rclone's Plex-integration cache wraps it for
// its own state cache.
package urlcache

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cache maps a normalized path to its most recently resolved unrestricted
// URL, expiring entries after ttl so a stale signed URL eventually forces a
// fresh resolve.
type Cache struct {
	c *cache.Cache
}

// New creates a cache whose entries expire after ttl, swept for
// expiration roughly every ttl/2 (never less than a minute), matching the
// cleanup-interval idiom rclone passes to cache.New.
func New(ttl time.Duration) *Cache {
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Cache{c: cache.New(ttl, cleanup)}
}

// Get returns the cached URL for path, if present and not expired.
func (c *Cache) Get(path string) (string, bool) {
	v, found := c.c.Get(path)
	if !found {
		return "", false
	}
	return v.(string), true
}

// Set caches url for path using the cache's default TTL.
func (c *Cache) Set(path, url string) {
	c.c.Set(path, url, cache.DefaultExpiration)
}

// Evict removes any cached URL for path, forcing the next read to resolve
// a fresh one.
func (c *Cache) Evict(path string) {
	c.c.Delete(path)
}

// EvictPrefix removes every cached entry whose path is prefix or a
// descendant of prefix, used when a directory subtree is removed or
// renamed out from under the cache.
func (c *Cache) EvictPrefix(prefix string) {
	for key := range c.c.Items() {
		if key == prefix || len(key) > len(prefix) && key[:len(prefix)+1] == prefix+"/" {
			c.c.Delete(key)
		}
	}
}
