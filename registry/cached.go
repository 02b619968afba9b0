package registry

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of records Cached keeps when size is not
// positive.
const DefaultCacheSize = 1024

// Cached is a read-through Registry that keeps recently resolved records in a
// bounded LRU. Failed lookups are not cached. Provisioning code must call
// Invalidate after changing a record in the underlying registry.
type Cached struct {
	next  Registry
	cache *lru.Cache[string, ServiceRecord]
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Registry, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, ServiceRecord](size)
	if err != nil {
		return nil, err
	}

	return &Cached{next: next, cache: cache}, nil
}

// Lookup implements Registry.
func (c *Cached) Lookup(ctx context.Context, id string) (*ServiceRecord, error) {
	if rec, ok := c.cache.Get(id); ok {
		clone := rec.Clone()
		return &clone, nil
	}

	rec, err := c.next.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Add(id, rec.Clone())

	return rec, nil
}

// Invalidate drops the cached record for id.
func (c *Cached) Invalidate(id string) {
	c.cache.Remove(id)
}

// Purge drops every cached record.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached records.
func (c *Cached) Len() int {
	return c.cache.Len()
}
