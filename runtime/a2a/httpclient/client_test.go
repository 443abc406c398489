package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/types"
)

func TestSendTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `"tasks/send"`, string(req["method"]))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var p types.SendTaskPayload
		require.NoError(t, json.Unmarshal(req["params"], &p))
		assert.Equal(t, "task-1", p.ID)

		task := &types.Task{
			ID:        p.ID,
			SessionID: p.SessionID,
			Status:    types.NewStatus(types.TaskCompleted, ""),
		}
		result, err := json.Marshal(task)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(req["id"]),
			"result":  json.RawMessage(result),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithBearerToken("secret"))
	task, err := c.SendTask(context.Background(), &types.SendTaskPayload{
		ID:        "task-1",
		SessionID: "session-1",
		Message: &types.TaskMessage{
			Role:  "user",
			Parts: []*types.MessagePart{types.NewTextPart("GOOG")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, task.Status.State)
}

func TestSendTaskProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": a2a.CodeUnsupportedOperation, "message": "nope"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SendTask(context.Background(), &types.SendTaskPayload{ID: "task-1"})
	var rpcErr *a2a.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, a2a.CodeUnsupportedOperation, rpcErr.Code)
	assert.Equal(t, "nope", rpcErr.Message)
}

func TestSendTaskTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1")
	_, err := c.SendTask(context.Background(), &types.SendTaskPayload{ID: "task-1"})
	require.Error(t, err)
	// Transport failures are plain errors, not protocol errors.
	var rpcErr *a2a.Error
	assert.False(t, errors.As(err, &rpcErr))
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `"tasks/get"`, string(req["method"]))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(req["id"]),
			"result":  map[string]any{"id": "task-1", "status": map[string]any{"state": "working"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	task, err := c.GetTask(context.Background(), &types.GetTaskPayload{ID: "task-1"})
	require.NoError(t, err)
	assert.Equal(t, types.TaskWorking, task.Status.State)
}
