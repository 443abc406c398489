package gemini

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"goa.design/horizon/runtime/live"
	"goa.design/horizon/runtime/session"
	"goa.design/horizon/runtime/session/inmem"
)

// fakeConn scripts the upstream connection: Receive returns the queued
// messages in order, then blocks until Close.
type fakeConn struct {
	mu        sync.Mutex
	messages  []*genai.LiveServerMessage
	realtime  []*genai.LiveRealtimeInput
	content   []*genai.LiveClientContentInput
	responses []*genai.LiveToolResponseInput
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn(messages ...*genai.LiveServerMessage) *fakeConn {
	return &fakeConn{messages: messages, closed: make(chan struct{})}
}

func (f *fakeConn) SendRealtimeInput(input genai.LiveRealtimeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realtime = append(f.realtime, &input)
	return nil
}

func (f *fakeConn) SendClientContent(input genai.LiveClientContentInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = append(f.content, &input)
	return nil
}

func (f *fakeConn) SendToolResponse(input genai.LiveToolResponseInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, &input)
	return nil
}

func (f *fakeConn) Receive() (*genai.LiveServerMessage, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-f.closed
	return nil, io.EOF
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func newTestRunner(t *testing.T, conn *fakeConn, store session.Store, opts ...Option) *Runner {
	t.Helper()
	r := &Runner{
		sessions: store,
		model:    defaultModel,
		connect: func(context.Context, string, *genai.LiveConnectConfig) (liveConn, error) {
			return conn, nil
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func serverText(text string, turnComplete bool) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn:    &genai.Content{Parts: []*genai.Part{{Text: text}}},
		TurnComplete: turnComplete,
	}}
}

func TestRunLiveTranslatesServerContent(t *testing.T) {
	conn := newFakeConn(
		serverText("hel", false),
		&genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "audio/pcm", Data: []byte{1, 2, 3}}},
			}},
		}},
		&genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}},
		&genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{TurnComplete: true}},
	)
	store := inmem.New()
	sess, err := store.GetOrCreate(context.Background(), "user-1", "s1")
	require.NoError(t, err)

	run, err := newTestRunner(t, conn, store).RunLive(context.Background(), sess)
	require.NoError(t, err)

	ev := <-run.Events()
	require.NotNil(t, ev.Content)
	assert.Equal(t, "hel", ev.Content.Parts[0].Text)
	assert.True(t, ev.Partial)

	ev = <-run.Events()
	blob := ev.FirstBlob()
	require.NotNil(t, blob)
	assert.Equal(t, "audio/pcm", blob.MIMEType)

	ev = <-run.Events()
	assert.True(t, ev.Interrupted)

	ev = <-run.Events()
	assert.True(t, ev.TurnComplete)

	run.Queue().Close()
	_, open := <-run.Events()
	assert.False(t, open)
	assert.NoError(t, run.Err())
}

func TestRunLiveForwardsClientInput(t *testing.T) {
	conn := newFakeConn()
	store := inmem.New()
	sess, err := store.GetOrCreate(context.Background(), "user-1", "s1")
	require.NoError(t, err)

	run, err := newTestRunner(t, conn, store).RunLive(context.Background(), sess)
	require.NoError(t, err)

	require.NoError(t, run.Queue().SendRealtime(&live.Blob{MIMEType: "audio/pcm", Data: []byte{7}}))
	require.NoError(t, run.Queue().SendContent(&live.Content{Parts: []*live.Part{{Text: "what is GOOG at?"}}}))

	run.Queue().Close()
	for range run.Events() {
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.realtime, 1)
	assert.Equal(t, []byte{7}, conn.realtime[0].Media.Data)
	require.Len(t, conn.content, 1)
	require.Len(t, conn.content[0].Turns, 1)
	assert.Equal(t, "what is GOOG at?", conn.content[0].Turns[0].Parts[0].Text)
	require.NotNil(t, conn.content[0].TurnComplete)
	assert.True(t, *conn.content[0].TurnComplete)
}

func TestToolCallInvokesTools(t *testing.T) {
	conn := newFakeConn(&genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{
		FunctionCalls: []*genai.FunctionCall{{ID: "fc1", Name: "delegate_task", Args: map[string]any{"symbol": "GOOG"}}},
	}})
	store := inmem.New()
	sess, err := store.GetOrCreate(context.Background(), "user-1", "s1")
	require.NoError(t, err)

	invoker := ToolInvokerFunc(func(_ context.Context, _ *session.Session, tool string, args map[string]any) (map[string]any, error) {
		assert.Equal(t, "delegate_task", tool)
		assert.Equal(t, "GOOG", args["symbol"])
		return map[string]any{"status": "success", "data": map[string]any{"price": 172.5}}, nil
	})

	run, err := newTestRunner(t, conn, store, WithTools(invoker)).RunLive(context.Background(), sess)
	require.NoError(t, err)

	run.Queue().Close()
	for range run.Events() {
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.responses, 1)
	resp := conn.responses[0].FunctionResponses[0]
	assert.Equal(t, "fc1", resp.ID)
	assert.Equal(t, "success", resp.Response["status"])
}

func TestToolCallHonorsMockFlag(t *testing.T) {
	conn := newFakeConn(&genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{
		FunctionCalls: []*genai.FunctionCall{{ID: "fc1", Name: "delegate_task", Args: map[string]any{"symbol": "GOOG"}}},
	}})
	store := inmem.New()
	sess, err := store.GetOrCreate(context.Background(), "user-1", "s1")
	require.NoError(t, err)
	_, err = store.ApplyDelta(context.Background(), "s1", session.Delta{State: map[string]any{MockFlag: true}})
	require.NoError(t, err)

	invoked := false
	invoker := ToolInvokerFunc(func(context.Context, *session.Session, string, map[string]any) (map[string]any, error) {
		invoked = true
		return nil, nil
	})

	run, err := newTestRunner(t, conn, store, WithTools(invoker)).RunLive(context.Background(), sess)
	require.NoError(t, err)

	run.Queue().Close()
	for range run.Events() {
	}

	assert.False(t, invoked)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.responses, 1)
	resp := conn.responses[0].FunctionResponses[0]
	assert.Equal(t, "success", resp.Response["status"])
	data, ok := resp.Response["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["mocked"])
	assert.Equal(t, "GOOG", data["symbol"])
}
