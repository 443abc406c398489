package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/horizon/features/session/mongo/clients/mongo/inmem"
	"goa.design/horizon/runtime/session"
)

func TestNewStoreRequiresClient(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(inmem.New())
	require.NoError(t, err)

	sess, err := store.GetOrCreate(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, "user-1", sess.UserID)

	sess, err = store.ApplyDelta(ctx, "s1", session.Delta{
		State:     map[string]any{"mock_a2a_calls": true},
		Artifacts: map[string]int{"quote_data": 3},
	})
	require.NoError(t, err)
	assert.True(t, sess.Flag("mock_a2a_calls"))
	assert.Equal(t, 3, sess.ArtifactVersions["quote_data"])

	// GetOrCreate on an existing session returns it untouched.
	again, err := store.GetOrCreate(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.True(t, again.Flag("mock_a2a_calls"))

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestApplyDeltaUnknownSession(t *testing.T) {
	store, err := NewStore(inmem.New())
	require.NoError(t, err)

	_, err = store.ApplyDelta(context.Background(), "missing", session.Delta{
		State: map[string]any{"k": "v"},
	})
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
