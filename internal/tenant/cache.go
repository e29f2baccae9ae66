// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/presencewatch/internal/metrics"
)

// Resource identifies a cached upstream resource type.
type Resource string

const (
	ResourceUser      Resource = "user"
	ResourceFriends   Resource = "friends"
	ResourceSchedules Resource = "schedules"
)

// ErrUnknownResource is returned for a resource type the cache does not serve.
var ErrUnknownResource = errors.New("unknown resource")

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	switch r := Resource(s); r {
	case ResourceUser, ResourceFriends, ResourceSchedules:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
	}
}

// Key identifies one cache entry.
type Key struct {
	Account  string
	Resource Resource
}

// String returns "account/resource".
func (k Key) String() string {
	return k.Account + "/" + string(k.Resource)
}

// Fetcher performs the upstream call for one key.
type Fetcher func(ctx context.Context) (any, error)

// Result describes where a value came from.
type Result struct {
	// FetchedAt is when the value was fetched from upstream.
	FetchedAt time.Time
	// Cached is true when no upstream call was made for this caller.
	Cached bool
	// Shared is true when the value came from a fetch started by another caller.
	Shared bool
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries int `json:"entries"`
}

type entry struct {
	value     any
	fetchedAt time.Time
}

type flight struct {
	entry  entry
	cached bool
}

// Cache is the multi-tenant cache and fetch coalescer. Values are shared by
// every caller and must be treated as read-only.
type Cache struct {
	minAge  time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[Key]entry
	// gen is bumped by Invalidate so a fetch that started before it does
	// not repopulate the entry.
	gen map[Key]uint64
}

// New creates a cache. minAge is the minimum refetch interval; timeout bounds
// each shared upstream fetch (0 means no bound beyond the fetcher's own).
func New(minAge, timeout time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		minAge:  minAge,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		entries: make(map[Key]entry),
		gen:     make(map[Key]uint64),
	}
}

// Fetch returns the value for key, from cache when it is younger than the
// minimum refetch interval, otherwise from the in-flight or a new upstream
// fetch. All callers joined to one fetch receive the same value or error.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher) (any, Result, error) {
	if e, ok := c.fresh(key); ok {
		metrics.RecordTenantFetch(string(key.Resource), "hit")
		return e.value, Result{FetchedAt: e.fetchedAt, Cached: true}, nil
	}

	var initiated atomic.Bool
	ch := c.group.DoChan(key.String(), func() (any, error) {
		initiated.Store(true)
		return c.load(ctx, key, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, Result{}, ctx.Err()
	case res := <-ch:
		outcome := "coalesced"
		if initiated.Load() {
			outcome = "miss"
		}

		if res.Err != nil {
			metrics.RecordTenantFetch(string(key.Resource), outcome)
			return nil, Result{}, res.Err
		}
		f := res.Val.(flight)
		if f.cached {
			outcome = "hit"
		}
		metrics.RecordTenantFetch(string(key.Resource), outcome)
		return f.entry.value, Result{
			FetchedAt: f.entry.fetchedAt,
			Cached:    f.cached,
			Shared:    !initiated.Load(),
		}, nil
	}
}

// load runs inside the singleflight call. It re-checks freshness so a caller
// that missed just as the previous flight finished reuses its result.
func (c *Cache) load(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	if e, ok := c.fresh(key); ok {
		return flight{entry: e, cached: true}, nil
	}

	c.mu.RLock()
	gen := c.gen[key]
	c.mu.RUnlock()

	fctx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, c.timeout)
		defer cancel()
	}

	value, err := fetch(fctx)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key.String()).Msg("Upstream fetch failed, not cached")
		return nil, err
	}

	e := entry{value: value, fetchedAt: c.now()}
	c.mu.Lock()
	if c.gen[key] == gen {
		c.entries[key] = e
	}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.TenantCacheEntries.Set(float64(n))

	return flight{entry: e}, nil
}

func (c *Cache) fresh(key Key) (entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= c.minAge {
		return entry{}, false
	}
	return e, true
}

// Peek returns the cached value for key regardless of its age.
func (c *Cache) Peek(key Key) (any, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.value, e.fetchedAt, ok
}

// Invalidate drops every resource cached for account. A fetch in flight for
// it completes for its waiters but is not stored.
func (c *Cache) Invalidate(account string) {
	c.mu.Lock()
	for _, r := range []Resource{ResourceUser, ResourceFriends, ResourceSchedules} {
		key := Key{Account: account, Resource: r}
		delete(c.entries, key)
		c.gen[key]++
		c.group.Forget(key.String())
	}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.TenantCacheEntries.Set(float64(n))
}

// Stats returns the number of cached entries.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries)}
}

// Get is a typed wrapper around Cache.Fetch.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, Result, error) {
	var zero T
	v, res, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, res, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, res, fmt.Errorf("tenant cache: unexpected type %T for %s", v, key)
	}
	return typed, res, nil
}
