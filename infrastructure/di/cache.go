package di

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"citymemory/application/ports"
)

// CacheObserver is notified of every lookup
type CacheObserver interface {
	RecordCacheLookup(hit bool)
}

// RistrettoCache implements ports.Cache on an admission-controlled in-memory
// cache. Every entry costs 1, so the capacity is an entry count.
type RistrettoCache struct {
	cache    *ristretto.Cache
	observer CacheObserver
}

var _ ports.Cache = (*RistrettoCache)(nil)

// NewRistrettoCache creates a cache holding up to maxEntries values
func NewRistrettoCache(maxEntries int64, observer CacheObserver) (*RistrettoCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &RistrettoCache{cache: cache, observer: observer}, nil
}

// Get retrieves a value from cache
func (c *RistrettoCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, ok := c.cache.Get(key)
	if c.observer != nil {
		c.observer.RecordCacheLookup(ok)
	}
	return value, ok
}

// Set stores a value with TTL in seconds; zero means no expiry. Writes are
// buffered and may be dropped by the admission policy.
func (c *RistrettoCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	if ttl > 0 {
		c.cache.SetWithTTL(key, value, 1, time.Duration(ttl)*time.Second)
	} else {
		c.cache.Set(key, value, 1)
	}
	return nil
}

// Delete removes a value from cache
func (c *RistrettoCache) Delete(ctx context.Context, key string) error {
	c.cache.Del(key)
	return nil
}

// Clear removes all values from cache
func (c *RistrettoCache) Clear(ctx context.Context) error {
	c.cache.Clear()
	return nil
}

// Wait blocks until buffered writes are applied
func (c *RistrettoCache) Wait() { c.cache.Wait() }

// Close stops the cache's background goroutines
func (c *RistrettoCache) Close() { c.cache.Close() }
