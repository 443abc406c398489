package registry

import (
	"context"
	"sync"
	"time"

	"goa.design/horizon/runtime/a2a/types"
)

type (
	// Cache stores discovered agent cards by agent name. Implementations
	// must treat a missing or expired entry as (nil, nil).
	Cache interface {
		// Get retrieves a cached agent card by name.
		// Returns nil, nil if the name is not found or expired.
		Get(ctx context.Context, name string) (*types.AgentCard, error)
		// Set stores an agent card with the given TTL. A zero TTL means the
		// entry never expires.
		Set(ctx context.Context, name string, card *types.AgentCard, ttl time.Duration) error
		// Delete removes a cached entry.
		Delete(ctx context.Context, name string) error
	}

	// MemoryCache is an in-memory Cache implementation with TTL support.
	MemoryCache struct {
		mu      sync.RWMutex
		entries map[string]*cacheEntry
	}

	cacheEntry struct {
		card      *types.AgentCard
		expiresAt time.Time
	}
)

// NewMemoryCache creates a new in-memory agent card cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*cacheEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, name string) (*types.AgentCard, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, name)
		c.mu.Unlock()
		return nil, nil
	}
	return entry.card, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, name string, card *types.AgentCard, ttl time.Duration) error {
	entry := &cacheEntry{card: card}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
	return nil
}
