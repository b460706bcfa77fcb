// Package cache provides byte-level caching backends and the repository
// content cache built on top of them.
//
// # Backends
//
// [Cache] is a small key/value interface with three implementations:
//
//   - [FileCache]: one JSON file per key, for the CLI
//   - [RedisCache]: shared cache for several crawler instances
//   - [NullCache]: caching disabled
//
// # Content cache
//
// [ContentCache] stores fetched file contents keyed by (repository, path).
// Freshness is judged from the entry's own write time, so an entry older than
// the TTL is reported as a miss even while the backend still holds it.
//
//	cc := cache.NewContentCache(backend, cache.ContentOptions{TTL: 24 * time.Hour})
//	fetcher := cache.NewCachedFetcher(client, cc)
//	file, err := fetcher.FetchFile(ctx, "svc-a", "package.json")
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored data and true, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
