package storage

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCollectionCacheSize bounds the number of open collections kept by a long-running server
const DefaultCollectionCacheSize = 64

// CollectionCache keeps opened collections keyed by project root and backend target.
// Entries are dropped explicitly with Invalidate after a project is re-indexed or dropped.
type CollectionCache struct {
	cache *lru.Cache[CacheKey, Collection]
}

// CacheKey identifies a cached collection
type CacheKey struct {
	ProjectRoot string
	Target      string
}

// NewCollectionCache creates a cache holding at most size collections
func NewCollectionCache(size int) *CollectionCache {
	if size <= 0 {
		size = DefaultCollectionCacheSize
	}
	cache, err := lru.New[CacheKey, Collection](size)
	if err != nil {
		cache, _ = lru.New[CacheKey, Collection](DefaultCollectionCacheSize)
	}
	return &CollectionCache{cache: cache}
}

func (c *CollectionCache) Get(key CacheKey) (Collection, bool) {
	return c.cache.Get(key)
}

func (c *CollectionCache) Add(key CacheKey, col Collection) {
	c.cache.Add(key, col)
}

// Invalidate removes one project's entry and reports whether it was present
func (c *CollectionCache) Invalidate(key CacheKey) bool {
	return c.cache.Remove(key)
}

func (c *CollectionCache) Purge() {
	c.cache.Purge()
}

func (c *CollectionCache) Len() int {
	return c.cache.Len()
}
