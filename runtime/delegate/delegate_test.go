package delegate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/types"
	"goa.design/horizon/runtime/registry"
)

// fakeCaller scripts the remote specialist.
type fakeCaller struct {
	mu      sync.Mutex
	task    *types.Task
	err     error
	payload *types.SendTaskPayload
	calls   int
}

func (f *fakeCaller) SendTask(_ context.Context, p *types.SendTaskPayload) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload = p
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	task := *f.task
	task.ID = p.ID
	return &task, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(&types.AgentCard{Name: "Quote Agent", URL: "http://quotes.local/"})
	}))
	t.Cleanup(srv.Close)

	reg := registry.New()
	cards := reg.Discover(context.Background(), []string{srv.URL})
	require.Len(t, cards, 1)
	return reg
}

func newClient(reg *registry.Registry, caller *fakeCaller) *Client {
	return New(reg, WithCallerFactory(func(string) a2a.Caller { return caller }))
}

func completedTask(data map[string]any) *types.Task {
	return &types.Task{
		Status: types.NewStatus(types.TaskCompleted, ""),
		Artifacts: []*types.Artifact{{
			Name:  "quote_data",
			Parts: []*types.MessagePart{types.NewDataPart(data)},
		}},
	}
}

func TestDelegateSuccess(t *testing.T) {
	caller := &fakeCaller{task: completedTask(map[string]any{"symbol": "GOOG", "price": 172.5})}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "GOOG", out.Data["symbol"])

	require.NotNil(t, caller.payload)
	assert.Equal(t, "s1", caller.payload.SessionID)
	assert.NotEmpty(t, caller.payload.ID)
	text, ok := caller.payload.Message.FirstText()
	require.True(t, ok)
	assert.Equal(t, "GOOG", text)
}

func TestDelegateFreshTaskIDs(t *testing.T) {
	caller := &fakeCaller{task: completedTask(map[string]any{"ok": true})}
	c := newClient(testRegistry(t), caller)

	c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	first := caller.payload.ID
	c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.NotEqual(t, first, caller.payload.ID)
}

func TestDelegateJSONInputBecomesDataPart(t *testing.T) {
	caller := &fakeCaller{task: completedTask(map[string]any{"ok": true})}
	c := newClient(testRegistry(t), caller)

	c.Delegate(context.Background(), "Quote Agent", `{"symbol": "GOOG"}`, "s1")
	part := caller.payload.Message.Parts[0]
	assert.Equal(t, types.PartData, part.Type)
	data, ok := part.DataMap()
	require.True(t, ok)
	assert.Equal(t, "GOOG", data["symbol"])
}

func TestDelegateCompletedWithoutData(t *testing.T) {
	caller := &fakeCaller{task: &types.Task{Status: types.NewStatus(types.TaskCompleted, "")}}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "without a data artifact")
}

func TestDelegateUnknownSpecialist(t *testing.T) {
	caller := &fakeCaller{task: completedTask(nil)}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Nobody", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "not found")
	// No network call is made for unknown specialists.
	assert.Zero(t, caller.calls)
}

// failingCache simulates a cache backend outage during lookups.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (*types.AgentCard, error) {
	return nil, assert.AnError
}

func (failingCache) Set(context.Context, string, *types.AgentCard, time.Duration) error {
	return nil
}

func (failingCache) Delete(context.Context, string) error { return nil }

func TestDelegateLookupBackendFailure(t *testing.T) {
	caller := &fakeCaller{task: completedTask(nil)}
	c := newClient(registry.New(registry.WithCache(failingCache{})), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "resolving specialist")
	assert.NotContains(t, out.Message, "not found")
	assert.Zero(t, caller.calls)
}

func TestDelegateTransportError(t *testing.T) {
	caller := &fakeCaller{err: assert.AnError}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "delegation")
}

func TestDelegateFailedTask(t *testing.T) {
	caller := &fakeCaller{task: &types.Task{
		Status:    types.NewStatus(types.TaskFailed, ""),
		Artifacts: []*types.Artifact{types.NewErrorArtifact("unknown symbol: ZZZZ")},
	}}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "ZZZZ", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, "unknown symbol: ZZZZ", out.Message)
}

func TestDelegateFailedTaskWithoutDetails(t *testing.T) {
	caller := &fakeCaller{task: &types.Task{Status: types.NewStatus(types.TaskFailed, "")}}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, "task failed without details", out.Message)
}

func TestDelegateUnexpectedState(t *testing.T) {
	caller := &fakeCaller{task: &types.Task{Status: types.NewStatus(types.TaskWorking, "")}}
	c := newClient(testRegistry(t), caller)

	out := c.Delegate(context.Background(), "Quote Agent", "GOOG", "s1")
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, out.Message, "unexpected state")
}
