package statscache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a cache key on a miss.
type Loader func(ctx context.Context) (any, error)

// entry holds a cached value with the time it was stored. Staleness is
// decided at read time against the TTL the current caller supplies, so the
// same key may be considered live by one call site and stale by another
// (last-caller-wins, accepted behavior).
type entry struct {
	value    any
	storedAt time.Time
}

// TTLCache is a cache-aside store with per-call TTLs and singleflight
// de-duplication of concurrent loads for the same key. A failed load is
// never cached; stale entries stay present until overwritten, evicted, or
// explicitly invalidated.
type TTLCache struct {
	entries *lru.Cache[string, entry]

	group singleflight.Group

	// Keys with a load currently in flight, so InvalidateAll can forget
	// pending singleflight results as well as stored values.
	inflightMu sync.Mutex
	inflight   map[string]struct{}

	hits   atomic.Uint64
	misses atomic.Uint64
	loads  atomic.Uint64
	errors atomic.Uint64
}

// New creates a TTLCache with the given configuration.
func New(cfg Config) (*TTLCache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	entries, err := lru.New[string, entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}

	return &TTLCache{
		entries:  entries,
		inflight: make(map[string]struct{}),
	}, nil
}

// Cached returns the live cached value for key, or loads it. Concurrent
// callers for the same key share a single loader invocation and its
// outcome. Loader errors propagate to every waiter and leave the cache
// untouched.
func (c *TTLCache) Cached(ctx context.Context, key string, ttl time.Duration, loader Loader) (any, error) {
	if e, ok := c.entries.Get(key); ok && time.Since(e.storedAt) < ttl {
		c.hits.Add(1)
		return e.value, nil
	}
	c.misses.Add(1)

	c.markInflight(key)
	v, err, _ := c.group.Do(key, func() (any, error) {
		defer c.clearInflight(key)

		// Double check: another caller may have stored a fresh value
		// between the miss above and entering the flight.
		if e, ok := c.entries.Get(key); ok && time.Since(e.storedAt) < ttl {
			return e.value, nil
		}

		c.loads.Add(1)
		value, err := loader(ctx)
		if err != nil {
			c.errors.Add(1)
			return nil, err
		}

		c.entries.Add(key, entry{value: value, storedAt: time.Now()})
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate removes the listed entries. Called with no keys it clears
// every stored value (dual-mode, callers must be explicit to avoid
// accidental full wipes). In-flight loads are left to settle.
func (c *TTLCache) Invalidate(keys ...string) {
	if len(keys) == 0 {
		c.entries.Purge()
		return
	}
	for _, key := range keys {
		c.entries.Remove(key)
	}
}

// InvalidateAll clears every stored value and forgets all in-flight loads,
// so the next call for any key runs a fresh loader. Used after a mutation
// that may affect every derived key.
func (c *TTLCache) InvalidateAll() {
	c.entries.Purge()

	c.inflightMu.Lock()
	for key := range c.inflight {
		c.group.Forget(key)
	}
	c.inflight = make(map[string]struct{})
	c.inflightMu.Unlock()
}

// Stats returns cache counters.
func (c *TTLCache) Stats() Stats {
	return Stats{
		Entries: c.entries.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Loads:   c.loads.Load(),
		Errors:  c.errors.Load(),
	}
}

func (c *TTLCache) markInflight(key string) {
	c.inflightMu.Lock()
	c.inflight[key] = struct{}{}
	c.inflightMu.Unlock()
}

func (c *TTLCache) clearInflight(key string) {
	c.inflightMu.Lock()
	delete(c.inflight, key)
	c.inflightMu.Unlock()
}
