package registry

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/horizon/runtime/a2a/types"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	card, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, card)

	require.NoError(t, cache.Set(ctx, "Quote Agent", &types.AgentCard{Name: "Quote Agent"}, 0))
	card, err = cache.Get(ctx, "Quote Agent")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "Quote Agent", card.Name)

	require.NoError(t, cache.Delete(ctx, "Quote Agent"))
	card, err = cache.Get(ctx, "Quote Agent")
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	require.NoError(t, cache.Set(ctx, "Quote Agent", &types.AgentCard{Name: "Quote Agent"}, time.Nanosecond))
	time.Sleep(time.Millisecond)

	card, err := cache.Get(ctx, "Quote Agent")
	require.NoError(t, err)
	assert.Nil(t, card)
}

// TestMemoryCacheProperties checks that for any sequence of stored cards the
// cache returns the most recently stored card within its TTL.
func TestMemoryCacheProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("get returns the last set within TTL", prop.ForAll(
		func(names []string) bool {
			ctx := context.Background()
			cache := NewMemoryCache()
			last := make(map[string]string)
			for i, name := range names {
				version := string(rune('a' + i%26))
				if err := cache.Set(ctx, name, &types.AgentCard{Name: name, Version: version}, time.Hour); err != nil {
					return false
				}
				last[name] = version
			}
			for name, version := range last {
				card, err := cache.Get(ctx, name)
				if err != nil || card == nil || card.Version != version {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
