package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/horizon/runtime/a2a/types"
)

func testClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis cache test")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, err := New(testClient(t), WithPrefix("horizon-test:agents:"))
	require.NoError(t, err)

	card := &types.AgentCard{Name: "Quote Agent", URL: "http://quotes.local/", Version: "1.0.0"}
	require.NoError(t, cache.Set(ctx, card.Name, card, time.Minute))

	got, err := cache.Get(ctx, card.Name)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, card.URL, got.URL)

	require.NoError(t, cache.Delete(ctx, card.Name))
	got, err = cache.Get(ctx, card.Name)
	require.NoError(t, err)
	assert.Nil(t, got)
}
