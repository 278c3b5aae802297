// Package assetcache provides an in-memory implementation of
// netwatch.ResourceCache. The store is the authoritative source of truth for
// captured and pre-seeded resources; the Interception Decider and Response
// Capturer read and write exclusively through it.
package assetcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/felipeplets/percy-cli/internal/netwatch"
)

// MemoryCache is a concurrency-safe in-memory netwatch.ResourceCache. It is
// suitable for a single watch session; a Redis or GCS-backed implementation
// would satisfy the same interface for multi-instance deployments.
type MemoryCache struct {
	mu        sync.RWMutex
	resources map[string]netwatch.Resource
}

// NewMemoryCache returns an empty cache. Seed entries via Seed before the
// watch begins to pre-provide root or provided resources.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{resources: make(map[string]netwatch.Resource)}
}

// Seed installs a resource before the watch begins, e.g. the root document
// fetched out-of-band (scenario S1) or externally provided assets.
func (c *MemoryCache) Seed(url string, r netwatch.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[url] = r
}

// GetResource implements netwatch.ResourceCache.
func (c *MemoryCache) GetResource(_ context.Context, url string) (*netwatch.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.resources[url]
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent callers from mutating cached state.
	copy := r
	return &copy, nil
}

// SaveResource implements netwatch.ResourceCache. Safe for concurrent use
// from multiple Response Capturers.
func (c *MemoryCache) SaveResource(_ context.Context, r netwatch.Resource) error {
	if r.URL == "" {
		return fmt.Errorf("assetcache: resource has no URL")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.URL] = r
	return nil
}

// Snapshot returns a copy of every resource currently held, keyed by URL.
// Used by the watch operation to assemble the discovered-asset manifest.
func (c *MemoryCache) Snapshot() map[string]netwatch.Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]netwatch.Resource, len(c.resources))
	for k, v := range c.resources {
		out[k] = v
	}
	return out
}
