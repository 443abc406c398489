// Package redis provides a Redis-backed implementation of registry.Cache so
// discovered agent cards survive restarts and are shared across host
// instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"goa.design/horizon/runtime/a2a/types"
	"goa.design/horizon/runtime/registry"
)

// defaultPrefix namespaces cache keys in a shared Redis instance.
const defaultPrefix = "horizon:agents:"

// Cache implements registry.Cache on Redis.
type Cache struct {
	client goredis.UniversalClient
	prefix string
}

var _ registry.Cache = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New creates a Redis-backed agent card cache.
func New(client goredis.UniversalClient, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	c := &Cache{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Get implements registry.Cache.
func (c *Cache) Get(ctx context.Context, name string) (*types.AgentCard, error) {
	raw, err := c.client.Get(ctx, c.prefix+name).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading agent card %q: %w", name, err)
	}
	var card types.AgentCard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return nil, fmt.Errorf("decoding cached agent card %q: %w", name, err)
	}
	return &card, nil
}

// Set implements registry.Cache.
func (c *Cache) Set(ctx context.Context, name string, card *types.AgentCard, ttl time.Duration) error {
	raw, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encoding agent card %q: %w", name, err)
	}
	if err := c.client.Set(ctx, c.prefix+name, raw, ttl).Err(); err != nil {
		return fmt.Errorf("caching agent card %q: %w", name, err)
	}
	return nil
}

// Delete implements registry.Cache.
func (c *Cache) Delete(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, c.prefix+name).Err(); err != nil {
		return fmt.Errorf("deleting agent card %q: %w", name, err)
	}
	return nil
}
