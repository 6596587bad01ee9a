// Package reference loads the portal's reference tables from a source and
// keeps them in a process-wide cache shared by request handlers.
package reference

import (
	"context"
	"sync"
	"time"

	"cmportal/domain/core"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/ports"

	"golang.org/x/sync/singleflight"
)

const loadKey = "tables"

// CacheStats describes the cache state for the admin surface
type CacheStats struct {
	Source     string    `json:"source"`
	Loaded     bool      `json:"loaded"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	Loads      int       `json:"loads"`
	Failures   int       `json:"failures"`
	Generation uint64    `json:"generation"`
	LastError  string    `json:"last_error,omitempty"`
	Protocols  int       `json:"protocols"`
	Features   int       `json:"features"`
	Topics     int       `json:"topics"`
}

// Cache holds the loaded reference tables. Concurrent first requests share a
// single load; Clear drops the tables so the next request reloads them.
type Cache struct {
	source ports.ReferenceSource
	logger *internal.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	tables     *reference.Tables
	generation uint64
	loadedAt   time.Time
	loads      int
	failures   int
	lastErr    error
	onClear    []func()
}

// NewCache creates an empty cache over source
func NewCache(source ports.ReferenceSource, logger *internal.Logger) *Cache {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Cache{source: source, logger: logger.With("ReferenceCache")}
}

// Tables implements ports.TablesProvider
func (c *Cache) Tables(ctx context.Context) (*reference.Tables, error) {
	return c.GetOrLoad(ctx)
}

// GetOrLoad returns the cached tables, loading them from the source when absent.
// A load finishing after a Clear is returned to its callers but not cached.
func (c *Cache) GetOrLoad(ctx context.Context) (*reference.Tables, error) {
	c.mu.RLock()
	tables := c.tables
	c.mu.RUnlock()
	if tables != nil {
		return tables, nil
	}

	v, err, _ := c.group.Do(loadKey, func() (interface{}, error) {
		c.mu.RLock()
		if c.tables != nil {
			t := c.tables
			c.mu.RUnlock()
			return t, nil
		}
		gen := c.generation
		c.mu.RUnlock()

		start := time.Now()
		// the load is shared, so one caller's cancellation must not fail the others
		loaded, err := c.source.Load(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.failures++
			c.lastErr = err
			if core.IsIntegrityError(err) {
				c.logger.Error("reference tables from %s are malformed: %v", c.source.Name(), err)
			} else {
				c.logger.Error("loading reference tables from %s failed: %v", c.source.Name(), err)
			}
			return nil, err
		}
		c.loads++
		c.lastErr = nil
		if c.generation == gen {
			c.tables = loaded
			c.loadedAt = time.Now()
		}
		c.logger.Info("loaded reference tables from %s in %v (%d protocols, %d features)",
			c.source.Name(), time.Since(start).Round(time.Millisecond), loaded.Matrix.Len(), loaded.Matrix.NumFeatures())
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*reference.Tables), nil
}

// Warm loads the tables eagerly, typically at process start
func (c *Cache) Warm(ctx context.Context) error {
	_, err := c.GetOrLoad(ctx)
	return err
}

// Clear drops the cached tables and runs the OnClear hooks
func (c *Cache) Clear() {
	c.mu.Lock()
	c.tables = nil
	c.generation++
	c.group.Forget(loadKey)
	hooks := append([]func(){}, c.onClear...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	c.logger.Info("reference cache cleared")
}

// OnClear registers fn to run after every Clear, e.g. to drop derived caches
func (c *Cache) OnClear(fn func()) {
	c.mu.Lock()
	c.onClear = append(c.onClear, fn)
	c.mu.Unlock()
}

// Stats reports the cache state
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Source:     c.source.Name(),
		Loaded:     c.tables != nil,
		LoadedAt:   c.loadedAt,
		Loads:      c.loads,
		Failures:   c.failures,
		Generation: c.generation,
	}
	if c.lastErr != nil {
		stats.LastError = c.lastErr.Error()
	}
	if c.tables != nil {
		stats.Protocols = c.tables.Matrix.Len()
		stats.Features = c.tables.Matrix.NumFeatures()
		stats.Topics = c.tables.Topics.Len()
	}
	return stats
}
