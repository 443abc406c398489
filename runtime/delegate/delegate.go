// Package delegate implements host-side task delegation: it resolves a
// specialist through the registry, sends it a one-shot A2A task, and folds
// the terminal task into a plain outcome the host agent can hand to its
// model. Delegation never returns an error; every failure mode becomes an
// error outcome.
package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/httpclient"
	"goa.design/horizon/runtime/a2a/retry"
	"goa.design/horizon/runtime/a2a/types"
	"goa.design/horizon/runtime/registry"
)

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type (
	// Outcome is the flattened result of one delegation.
	Outcome struct {
		// Status is "success" or "error".
		Status string `json:"status"`
		// Message carries detail for error outcomes.
		Message string `json:"message,omitempty"`
		// Data carries the specialist's result payload on success.
		Data map[string]any `json:"data,omitempty"`
	}

	// CallerFactory creates the A2A caller for a specialist endpoint.
	CallerFactory func(endpoint string) a2a.Caller

	// Client delegates tasks to specialists discovered in the registry.
	Client struct {
		registry *registry.Registry
		callers  CallerFactory
	}

	// Option configures a Client.
	Option func(*Client)
)

// WithCallerFactory overrides how per-specialist A2A callers are built.
func WithCallerFactory(f CallerFactory) Option {
	return func(c *Client) { c.callers = f }
}

// New creates a delegation client over the given registry.
func New(reg *registry.Registry, opts ...Option) *Client {
	c := &Client{
		registry: reg,
		callers: func(endpoint string) a2a.Caller {
			return retry.Wrap(httpclient.New(endpoint), retry.DefaultConfig())
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Delegate sends input to the named specialist as a fresh task bound to the
// session and blocks for the terminal result. Unknown specialists fail
// without any network call.
func (c *Client) Delegate(ctx context.Context, specialist, input, sessionID string) Outcome {
	card, err := c.registry.Lookup(ctx, specialist)
	if err != nil {
		if errors.Is(err, registry.ErrAgentNotFound) {
			return Outcome{Status: StatusError, Message: fmt.Sprintf("specialist agent %q not found", specialist)}
		}
		log.Errorf(ctx, err, "resolving specialist %q", specialist)
		return Outcome{Status: StatusError, Message: fmt.Sprintf("resolving specialist %q: %s", specialist, err)}
	}

	payload := &types.SendTaskPayload{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Message: &types.TaskMessage{
			Role:  "user",
			Parts: []*types.MessagePart{inputPart(input)},
		},
	}
	log.Printf(ctx, "delegating task %q to %q", payload.ID, specialist)

	task, err := c.callers(card.URL).SendTask(ctx, payload)
	if err != nil {
		log.Errorf(ctx, err, "delegation to %q failed", specialist)
		return Outcome{Status: StatusError, Message: fmt.Sprintf("delegation to %q failed: %s", specialist, err)}
	}

	return outcome(task, specialist)
}

// inputPart encodes the input as a data part when it is a JSON object,
// otherwise as a text part.
func inputPart(input string) *types.MessagePart {
	var obj map[string]any
	if err := json.Unmarshal([]byte(input), &obj); err == nil {
		return &types.MessagePart{Type: types.PartData, Data: json.RawMessage(input)}
	}
	return types.NewTextPart(input)
}

// outcome maps a terminal task to a delegation outcome.
func outcome(task *types.Task, specialist string) Outcome {
	switch task.Status.State {
	case types.TaskCompleted:
		if data, ok := resultData(task); ok {
			return Outcome{Status: StatusSuccess, Data: data}
		}
		// A completed task without a parsable data artifact is malformed.
		return Outcome{
			Status:  StatusError,
			Message: fmt.Sprintf("task for %q completed without a data artifact", specialist),
		}

	case types.TaskFailed:
		message := "task failed without details"
		for _, art := range task.Artifacts {
			if msg, ok := art.ErrorMessage(); ok {
				message = msg
				break
			}
		}
		return Outcome{Status: StatusError, Message: message}

	default:
		return Outcome{
			Status:  StatusError,
			Message: fmt.Sprintf("task for %q ended in unexpected state %q", specialist, task.Status.State),
		}
	}
}

// resultData extracts the first data part of a non-error artifact.
func resultData(task *types.Task) (map[string]any, bool) {
	for _, art := range task.Artifacts {
		if art == nil || art.Name == types.ErrorArtifactName {
			continue
		}
		for _, part := range art.Parts {
			if part == nil || part.Type != types.PartData {
				continue
			}
			if data, ok := part.DataMap(); ok {
				return data, true
			}
		}
	}
	return nil, false
}
