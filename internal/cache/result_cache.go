// Package cache memoizes backtest results per configuration key.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/observability"
)

// Defaults used when Options leave a bound unset.
const (
	DefaultCapacity = 256
	DefaultTTL      = time.Hour
)

// ComputeFunc produces the result for a missing key.
type ComputeFunc func(ctx context.Context) (*domain.BacktestResult, error)

// Options contains configuration for creating a ResultCache.
type Options struct {
	Capacity int           // max entries, DefaultCapacity when <= 0
	TTL      time.Duration // entry lifetime, DefaultTTL when <= 0
}

// ResultCache is a size and TTL bounded LRU of results.
// Concurrent misses for one key share a single computation, and a result
// becomes visible only once its computation has finished. Callers always
// receive their own copy.
type ResultCache struct {
	lru   *expirable.LRU[string, *domain.BacktestResult]
	group singleflight.Group
}

// New creates a result cache. Capacity and TTL removals both count as
// evictions.
func New(opts Options) *ResultCache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	onEvict := func(string, *domain.BacktestResult) {
		observability.RecordCacheEviction()
	}
	return &ResultCache{
		lru: expirable.NewLRU(opts.Capacity, onEvict, opts.TTL),
	}
}

// Get returns a copy of the cached result for key.
func (c *ResultCache) Get(key string) (*domain.BacktestResult, bool) {
	r, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// GetOrCompute returns the cached result for key, computing and storing it
// on a miss. hit reports whether the result came from the cache without
// running compute in this call. Errors are never cached.
//
// The shared computation does not inherit the cancellation of whichever
// caller started it: a caller that gives up returns ctx.Err() on its own
// while the others keep waiting, and the result is still cached.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (result *domain.BacktestResult, hit bool, err error) {
	if r, ok := c.Get(key); ok {
		observability.RecordCacheHit()
		return r, true, nil
	}
	observability.RecordCacheMiss()

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between our miss and DoChan already stored it
		if r, ok := c.lru.Get(key); ok {
			return r, nil
		}

		r, err := compute(flight)
		if err != nil {
			return nil, err
		}
		r = r.Clone()
		c.lru.Add(key, r)
		observability.UpdateCacheEntries(c.lru.Len())
		return r, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*domain.BacktestResult).Clone(), false, nil
	}
}

// Len returns the number of entries held. Expired entries count until the
// background sweep removes them.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.lru.Purge()
	observability.UpdateCacheEntries(0)
}
