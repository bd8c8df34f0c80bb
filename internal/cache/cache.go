// Package cache defines the keyed byte store with TTL and atomic counters
// used for the embedding cache, query-result cache, and token revocation
// set. Cache errors are always non-fatal: a failed Get is a miss, a failed
// Set is ignored (the Redis backend logs it at warning level).
package cache

import "context"

// Cache is a TTL-backed key/value store with an atomic counter.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss or
	// error.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	// Del removes a key; deletion is idempotent.
	Del(ctx context.Context, key string) error
	// DelPrefix removes every key starting with prefix, used to invalidate
	// a user's cached query results in one call.
	DelPrefix(ctx context.Context, prefix string) error
	// Incr atomically increments the integer stored at key (treating a
	// missing key as 0) and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}
