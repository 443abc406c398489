// Package live defines the upstream live-agent abstraction the bridge relays
// against: the event stream a running agent emits and the request queue that
// feeds client input back into it. Backends implement Runner (see the gemini
// subpackage).
package live

import (
	"context"

	"goa.design/horizon/runtime/session"
)

type (
	// Event is one message emitted by a running live agent.
	Event struct {
		// Author identifies the event producer (the agent name, "user", or
		// a control source).
		Author string
		// Content carries the event's parts, if any.
		Content *Content
		// Actions carries side effects the event applies to the session.
		Actions Actions
		// TurnComplete marks the end of the agent's turn.
		TurnComplete bool
		// Interrupted marks the agent's generation as cut off by the user.
		Interrupted bool
		// Partial marks streaming content that will be superseded by a
		// consolidated event.
		Partial bool
	}

	// Content is an ordered list of parts.
	Content struct {
		// Parts are the content parts in generation order.
		Parts []*Part
	}

	// Part is a single content element: text or a binary blob, never both.
	Part struct {
		// Text is the textual payload, if any.
		Text string
		// Blob is the binary payload, if any.
		Blob *Blob
	}

	// Blob is typed binary data such as an audio chunk.
	Blob struct {
		// MIMEType describes the payload (for example "audio/pcm").
		MIMEType string
		// Data is the raw payload bytes.
		Data []byte
	}

	// Actions are the session side effects attached to an event.
	Actions struct {
		// StateDelta holds state keys the event overwrites.
		StateDelta map[string]any
		// ArtifactDelta holds artifact versions the event overwrites.
		ArtifactDelta map[string]int
	}

	// Runner starts live agent runs. Implementations own the upstream
	// connection lifecycle; the returned Run ends when its event channel
	// closes.
	Runner interface {
		// RunLive connects the session to the upstream agent and starts
		// relaying. The run terminates when ctx is canceled, the run's
		// queue is closed, or the upstream ends the conversation.
		RunLive(ctx context.Context, sess *session.Session) (*Run, error)
	}

	// Run is one live conversation in flight.
	Run struct {
		events <-chan Event
		queue  *RequestQueue

		errOnce chan struct{}
		err     error
	}
)

// Empty reports whether the actions carry no side effects.
func (a Actions) Empty() bool {
	return len(a.StateDelta) == 0 && len(a.ArtifactDelta) == 0
}

// SessionDelta converts the actions into a session store delta.
func (a Actions) SessionDelta() session.Delta {
	return session.Delta{State: a.StateDelta, Artifacts: a.ArtifactDelta}
}

// FirstBlob returns the first binary part of the event, if any.
func (e *Event) FirstBlob() *Blob {
	if e.Content == nil {
		return nil
	}
	for _, p := range e.Content.Parts {
		if p != nil && p.Blob != nil {
			return p.Blob
		}
	}
	return nil
}

// NewRun creates a run over the given event stream and queue. Implementations
// of Runner close the event channel when the upstream ends and record the
// terminal error, if any, with Fail.
func NewRun(queue *RequestQueue, events <-chan Event) *Run {
	return &Run{events: events, queue: queue, errOnce: make(chan struct{}, 1)}
}

// Events returns the upstream event stream. The channel closes when the run
// ends; call Err afterwards to distinguish clean shutdown from failure.
func (r *Run) Events() <-chan Event { return r.events }

// Queue returns the request queue feeding client input to the agent.
func (r *Run) Queue() *RequestQueue { return r.queue }

// Fail records the run's terminal error. Only the first call takes effect.
func (r *Run) Fail(err error) {
	if err == nil {
		return
	}
	select {
	case r.errOnce <- struct{}{}:
		r.err = err
	default:
	}
}

// Err returns the terminal error recorded by Fail, if any. It must only be
// called after the event channel has closed.
func (r *Run) Err() error { return r.err }
