// Package cache provides the TTL cache in front of upstream sources.
//
// A Store holds opaque bytes with per-entry TTLs; the Loader adds
// cache-aside semantics with single-flight coalescing, so N concurrent
// requests for a cold key produce exactly one upstream fetch. The cache
// is an optimization only: losing it (or running without one) never
// affects correctness, just latency.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Default TTLs per key family. Package data moves slowly, search
// results and live storybook sites go stale faster.
const (
	MetadataTTL  = 24 * time.Hour
	PackageTTL   = 24 * time.Hour
	ReadmeTTL    = 24 * time.Hour
	SearchTTL    = 1 * time.Hour
	StorybookTTL = 1 * time.Hour
)

// Store is a TTL byte cache. Implementations must treat expired
// entries as misses.
type Store interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Cache keys are version-qualified, so a published version's cached
// data never has to be invalidated, it just expires.

// MetadataKey is the cache key for package-level registry metadata.
func MetadataKey(pkg string) string {
	return "npm:metadata:" + pkg
}

// PackageKey is the cache key for one version's manifest.
func PackageKey(pkg, version string) string {
	return fmt.Sprintf("npm:package:%s:%s", pkg, version)
}

// ReadmeKey is the cache key for a package README.
func ReadmeKey(pkg, version string) string {
	return fmt.Sprintf("npm:readme:%s:%s", pkg, version)
}

// SearchKey is the cache key for a registry search.
func SearchKey(query string, limit int) string {
	return fmt.Sprintf("npm:search:%s:%d", query, limit)
}

// StorybookKey is the cache key for a parsed storybook site.
func StorybookKey(url string) string {
	return "storybook:" + url
}
