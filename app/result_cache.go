package app

import (
	"sync"
)

// ResultCache is a bounded, insertion-ordered cache of search results keyed by
// normalized query parameters. The oldest entry is evicted when full.
type ResultCache struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]*SearchResult
	order   []string
	hits    int
	misses  int
	// generation advances on every Clear
	generation uint64
}

// ResultCacheStats reports cache usage
type ResultCacheStats struct {
	Entries int `json:"entries"`
	Limit   int `json:"limit"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// NewResultCache creates a cache holding at most limit results. A non-positive
// limit disables caching.
func NewResultCache(limit int) *ResultCache {
	return &ResultCache{limit: limit, entries: make(map[string]*SearchResult)}
}

// Get returns the cached result for key
func (c *ResultCache) Get(key string) (*SearchResult, bool) {
	if c == nil || c.limit <= 0 {
		return nil, false
	}
	c.mu.RLock()
	res, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return res, ok
}

// Put stores a result, evicting the oldest entry when the cache is full
func (c *ResultCache) Put(key string, res *SearchResult) {
	if c == nil || c.limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, res)
}

// Generation returns the current generation. Read it before loading the
// tables a result is built from and pass it to PutIfCurrent.
func (c *ResultCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// PutIfCurrent stores a result only if no Clear happened since gen was read,
// so results built from replaced tables are never cached.
func (c *ResultCache) PutIfCurrent(gen uint64, key string, res *SearchResult) bool {
	if c == nil || c.limit <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.store(key, res)
	return true
}

func (c *ResultCache) store(key string, res *SearchResult) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = res
		return
	}
	for len(c.order) >= c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = res
	c.order = append(c.order, key)
}

// Clear drops every cached result
func (c *ResultCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]*SearchResult)
	c.order = nil
	c.generation++
	c.mu.Unlock()
}

// Stats reports the cache state
func (c *ResultCache) Stats() ResultCacheStats {
	if c == nil {
		return ResultCacheStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ResultCacheStats{Entries: len(c.entries), Limit: c.limit, Hits: c.hits, Misses: c.misses}
}
