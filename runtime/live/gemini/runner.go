// Package gemini implements live.Runner on the Gemini Live API. It drains
// the run's request queue into the upstream realtime connection, translates
// server messages into live events, and executes tool calls through an
// injected invoker with optional per-session mocking.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"goa.design/clue/log"
	"google.golang.org/genai"

	"goa.design/horizon/runtime/live"
	"goa.design/horizon/runtime/session"
)

// MockFlag is the session state key that, when true, short-circuits tool
// calls with canned responses instead of invoking the real tool.
const MockFlag = "mock_a2a_calls"

// defaultModel is the Gemini model used when none is configured.
const defaultModel = "gemini-2.0-flash-live-001"

type (
	// ToolInvoker executes a tool call requested by the live agent.
	ToolInvoker interface {
		Invoke(ctx context.Context, sess *session.Session, tool string, args map[string]any) (map[string]any, error)
	}

	// ToolInvokerFunc adapts a function to ToolInvoker.
	ToolInvokerFunc func(ctx context.Context, sess *session.Session, tool string, args map[string]any) (map[string]any, error)

	// Runner implements live.Runner on the Gemini Live API.
	Runner struct {
		client   *genai.Client
		sessions session.Store
		model    string
		system   string
		tools    ToolInvoker
		decls    []*genai.FunctionDeclaration

		// connect is the seam used by tests to substitute the upstream
		// connection.
		connect connectFunc
	}

	// Option configures a Runner.
	Option func(*Runner)

	// liveConn is the subset of the upstream realtime session the runner
	// uses.
	liveConn interface {
		SendRealtimeInput(input genai.LiveRealtimeInput) error
		SendClientContent(input genai.LiveClientContentInput) error
		SendToolResponse(input genai.LiveToolResponseInput) error
		Receive() (*genai.LiveServerMessage, error)
		Close() error
	}

	connectFunc func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveConn, error)
)

// Invoke implements ToolInvoker.
func (f ToolInvokerFunc) Invoke(ctx context.Context, sess *session.Session, tool string, args map[string]any) (map[string]any, error) {
	return f(ctx, sess, tool, args)
}

// WithModel overrides the Gemini model.
func WithModel(model string) Option {
	return func(r *Runner) { r.model = model }
}

// WithSystemInstruction sets the agent's system instruction.
func WithSystemInstruction(text string) Option {
	return func(r *Runner) { r.system = text }
}

// WithTools registers the tool declarations advertised to the model and the
// invoker that executes them.
func WithTools(invoker ToolInvoker, decls ...*genai.FunctionDeclaration) Option {
	return func(r *Runner) {
		r.tools = invoker
		r.decls = decls
	}
}

// NewRunner creates a Gemini-backed live runner. The session store is used
// to reload session state before each tool call so control flags toggled
// mid-conversation take effect immediately.
func NewRunner(client *genai.Client, sessions session.Store, opts ...Option) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	r := &Runner{
		client:   client,
		sessions: sessions,
		model:    defaultModel,
	}
	r.connect = func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveConn, error) {
		return client.Live.Connect(ctx, model, cfg)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// RunLive implements live.Runner.
func (r *Runner) RunLive(ctx context.Context, sess *session.Session) (*live.Run, error) {
	conn, err := r.connect(ctx, r.model, r.connectConfig())
	if err != nil {
		return nil, fmt.Errorf("connecting live session %q: %w", sess.ID, err)
	}

	queue := live.NewRequestQueue()
	events := make(chan live.Event, 16)
	run := live.NewRun(queue, events)

	go r.drainQueue(ctx, conn, queue, run)
	go r.receive(ctx, conn, sess.ID, queue, events, run)
	return run, nil
}

func (r *Runner) connectConfig() *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if r.system != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: r.system}},
		}
	}
	if len(r.decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: r.decls}}
	}
	return cfg
}

// drainQueue forwards queued client commands upstream until the context is
// canceled or the queue closes, then closes the upstream connection to
// unblock the receive loop.
func (r *Runner) drainQueue(ctx context.Context, conn liveConn, queue *live.RequestQueue, run *live.Run) {
	defer func() {
		if err := conn.Close(); err != nil {
			log.Errorf(ctx, err, "closing live connection")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.Done():
			// Flush input buffered before the close.
			for {
				select {
				case cmd := <-queue.Commands():
					if err := r.forward(conn, cmd); err != nil {
						run.Fail(fmt.Errorf("forwarding client input: %w", err))
						return
					}
				default:
					return
				}
			}
		case cmd := <-queue.Commands():
			if err := r.forward(conn, cmd); err != nil {
				run.Fail(fmt.Errorf("forwarding client input: %w", err))
				return
			}
		}
	}
}

func (r *Runner) forward(conn liveConn, cmd live.Command) error {
	switch {
	case cmd.Realtime != nil:
		return conn.SendRealtimeInput(genai.LiveRealtimeInput{
			Media: &genai.Blob{MIMEType: cmd.Realtime.MIMEType, Data: cmd.Realtime.Data},
		})
	case cmd.Content != nil:
		parts := make([]*genai.Part, 0, len(cmd.Content.Parts))
		for _, p := range cmd.Content.Parts {
			if p == nil {
				continue
			}
			if p.Blob != nil {
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: p.Blob.MIMEType, Data: p.Blob.Data},
				})
				continue
			}
			parts = append(parts, &genai.Part{Text: p.Text})
		}
		return conn.SendClientContent(genai.LiveClientContentInput{
			Turns:        []*genai.Content{{Role: "user", Parts: parts}},
			TurnComplete: genai.Ptr(true),
		})
	default:
		return nil
	}
}

// receive translates upstream server messages into live events until the
// connection ends, then closes the event channel.
func (r *Runner) receive(ctx context.Context, conn liveConn, sessionID string, queue *live.RequestQueue, events chan<- live.Event, run *live.Run) {
	defer close(events)
	for {
		msg, err := conn.Receive()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !queueClosed(queue) {
				run.Fail(fmt.Errorf("live session %q: %w", sessionID, err))
			}
			return
		}
		if msg.ToolCall != nil {
			r.handleToolCall(ctx, conn, sessionID, msg.ToolCall)
			continue
		}
		ev, ok := translate(r.model, msg)
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func queueClosed(q *live.RequestQueue) bool {
	select {
	case <-q.Done():
		return true
	default:
		return false
	}
}

// handleToolCall executes the requested tools and sends their responses
// upstream. Session state is reloaded first so the mock flag reflects the
// latest toggle; when set, tools return canned results without invocation.
func (r *Runner) handleToolCall(ctx context.Context, conn liveConn, sessionID string, call *genai.LiveServerToolCall) {
	sess, err := r.sessions.Load(ctx, sessionID)
	if err != nil {
		log.Errorf(ctx, err, "loading session %q for tool call", sessionID)
		sess = &session.Session{ID: sessionID}
	}

	responses := make([]*genai.FunctionResponse, 0, len(call.FunctionCalls))
	for _, fc := range call.FunctionCalls {
		var result map[string]any
		switch {
		case sess.Flag(MockFlag):
			log.Printf(ctx, "mocking tool %q in session %q", fc.Name, sessionID)
			result = mockResult(fc.Name, fc.Args)
		case r.tools == nil:
			result = map[string]any{"status": "error", "message": fmt.Sprintf("tool %q is not available", fc.Name)}
		default:
			result, err = r.tools.Invoke(ctx, sess, fc.Name, fc.Args)
			if err != nil {
				log.Errorf(ctx, err, "tool %q failed in session %q", fc.Name, sessionID)
				result = map[string]any{"status": "error", "message": err.Error()}
			}
		}
		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: result,
		})
	}
	if err := conn.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses}); err != nil {
		log.Errorf(ctx, err, "sending tool responses in session %q", sessionID)
	}
}

// mockResult fabricates a successful tool response that echoes the call
// arguments and marks itself as mocked.
func mockResult(tool string, args map[string]any) map[string]any {
	data := map[string]any{"tool": tool, "mocked": true}
	for k, v := range args {
		data[k] = v
	}
	return map[string]any{"status": "success", "data": data}
}

// translate converts an upstream server message into a live event. It
// returns false for messages that carry nothing of interest to the bridge.
func translate(author string, msg *genai.LiveServerMessage) (live.Event, bool) {
	sc := msg.ServerContent
	if sc == nil {
		return live.Event{}, false
	}
	ev := live.Event{
		Author:       author,
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.ModelTurn != nil {
		content := &live.Content{}
		for _, p := range sc.ModelTurn.Parts {
			if p == nil {
				continue
			}
			part := &live.Part{Text: p.Text}
			if p.InlineData != nil {
				part.Blob = &live.Blob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
			}
			content.Parts = append(content.Parts, part)
		}
		if len(content.Parts) > 0 {
			ev.Content = content
			ev.Partial = !sc.TurnComplete
		}
	}
	if ev.Content == nil && !ev.TurnComplete && !ev.Interrupted {
		return live.Event{}, false
	}
	return ev, true
}
