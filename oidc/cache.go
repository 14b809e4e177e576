// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MetadataCache stores provider metadata keyed by normalized issuer.
type MetadataCache interface {
	Get(issuer string) (*ProviderMetadata, bool)
	Set(issuer string, md *ProviderMetadata)
}

const (
	memoryCacheMaxEntries = 1000
	memoryCacheCounters   = 10 * memoryCacheMaxEntries
)

// MemoryCache is an in memory MetadataCache which can be shared by every
// Discoverer of a process.
type MemoryCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

var _ MetadataCache = (*MemoryCache)(nil)

// NewMemoryCache creates a new MemoryCache. Entries expire after the ttl;
// a ttl of 0 means they're never evicted for being stale.
func NewMemoryCache(ttl time.Duration) (*MemoryCache, error) {
	const op = "oidc.NewMemoryCache"
	if ttl < 0 {
		return nil, fmt.Errorf("%s: ttl is negative: %w", op, ErrInvalidParameter)
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        memoryCacheCounters,
		MaxCost:            memoryCacheMaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &MemoryCache{cache: c, ttl: ttl}, nil
}

// Get returns a copy of the issuer's metadata.
func (c *MemoryCache) Get(issuer string) (*ProviderMetadata, bool) {
	v, ok := c.cache.Get(issuer)
	if !ok {
		return nil, false
	}
	md, ok := v.(*ProviderMetadata)
	if !ok {
		return nil, false
	}
	return md.clone(), true
}

// Set stores a copy of the issuer's metadata. It's visible to Get once Set
// returns.
func (c *MemoryCache) Set(issuer string, md *ProviderMetadata) {
	if md == nil {
		return
	}
	c.cache.SetWithTTL(issuer, md.clone(), 1, c.ttl)
	c.cache.Wait()
}

// Close stops the cache's goroutines. The cache can't be used afterwards.
func (c *MemoryCache) Close() {
	c.cache.Close()
}
