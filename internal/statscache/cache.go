// Package statscache provides a cache-aside layer with per-call TTLs and
// in-flight request de-duplication for derived statistics lookups.
package statscache

import "time"

// Standard TTL presets used by the statistics service call sites.
const (
	// TTLShort is used for main stats and detailed quote stats (15s).
	TTLShort = 15 * time.Second

	// TTLDefault is used for activity percent (30s).
	TTLDefault = 30 * time.Second

	// TTLProgress is used for the user progress computation (25s).
	TTLProgress = 25 * time.Second
)

// DefaultMaxEntries bounds the backing LRU. Statistics keys are scoped per
// user and per view, so the working set is tiny; the bound only guards
// against key leaks.
const DefaultMaxEntries = 1024

// Stats provides cache counters for monitoring.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Loads   uint64
	Errors  uint64
}

// Config holds configuration for the cache.
type Config struct {
	MaxEntries int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{MaxEntries: DefaultMaxEntries}
}
