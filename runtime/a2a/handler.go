package a2a

import (
	"context"
	"fmt"
	"strings"

	"goa.design/clue/log"

	"goa.design/horizon/runtime/a2a/types"
	"goa.design/horizon/runtime/mcp"
)

type (
	// TaskHandler executes one tasks/send request and returns the final task
	// snapshot. Implementations must leave the task store consistent before
	// returning, even on protocol-level failure.
	TaskHandler interface {
		HandleTask(ctx context.Context, p *types.SendTaskPayload) (*types.Task, error)
	}

	// WorkerFactory opens a fresh worker caller for one task invocation. The
	// handler closes the caller before returning, independent of outcome.
	WorkerFactory func(ctx context.Context) (mcp.Caller, error)

	// WorkerHandler drives an MCP worker to execute tasks. Per task it runs
	// the submitted → working → {completed | failed} state machine against
	// the provided store.
	WorkerHandler struct {
		store          TaskStore
		workers        WorkerFactory
		tool           string
		argName        string
		resultArtifact string
	}
)

// NewWorkerHandler creates a handler that invokes the named worker tool with
// the request's first text part bound to argName, attaching successful
// results as a data artifact with the given name.
func NewWorkerHandler(store TaskStore, workers WorkerFactory, tool, argName, resultArtifact string) (*WorkerHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if workers == nil {
		return nil, fmt.Errorf("worker factory is required")
	}
	if tool == "" || argName == "" || resultArtifact == "" {
		return nil, fmt.Errorf("tool, argName and resultArtifact are required")
	}
	return &WorkerHandler{
		store:          store,
		workers:        workers,
		tool:           tool,
		argName:        argName,
		resultArtifact: resultArtifact,
	}, nil
}

// HandleTask implements TaskHandler.
func (h *WorkerHandler) HandleTask(ctx context.Context, p *types.SendTaskPayload) (*types.Task, error) {
	task, err := h.store.Upsert(p)
	if err != nil {
		return nil, &Error{Code: JSONRPCInvalidParams, Message: err.Error()}
	}
	if task.Status.State.Terminal() {
		// Idempotent replay: a re-sent task id (e.g. a client retry after a
		// timeout) returns the stored outcome without re-running the worker.
		log.Printf(ctx, "task %q already finalized, returning stored result", task.ID)
		return task, nil
	}
	log.Printf(ctx, "task %q received in session %q", task.ID, task.SessionID)

	if task, err = h.store.UpdateStatus(task.ID, types.NewStatus(types.TaskWorking, ""), nil); err != nil {
		return nil, &Error{Code: JSONRPCInternalError, Message: err.Error()}
	}

	query, ok := p.Message.FirstText()
	if !ok || strings.TrimSpace(query) == "" {
		return h.fail(ctx, task.ID, "required input not provided in the request message")
	}
	query = strings.TrimSpace(query)

	result, workerErr := h.invokeWorker(ctx, query)
	if workerErr != nil {
		// Transport-level worker failure: record the failed task, then
		// surface a protocol error so the caller can distinguish it from a
		// task-domain failure.
		log.Errorf(ctx, workerErr, "task %q worker invocation failed", task.ID)
		if _, err := h.store.UpdateStatus(task.ID, types.NewStatus(types.TaskFailed, ""), []*types.Artifact{
			types.NewErrorArtifact("internal error processing task"),
		}); err != nil {
			log.Errorf(ctx, err, "task %q store update failed", task.ID)
		}
		return nil, &Error{Code: JSONRPCInternalError, Message: fmt.Sprintf("internal processing error for task %s", task.ID)}
	}

	if errVal, failed := result["error"]; failed {
		return h.fail(ctx, task.ID, fmt.Sprintf("%v", errVal))
	}

	artifact := &types.Artifact{
		Name:  h.resultArtifact,
		Parts: []*types.MessagePart{types.NewDataPart(result)},
	}
	task, err = h.store.UpdateStatus(task.ID, types.NewStatus(types.TaskCompleted, ""), []*types.Artifact{artifact})
	if err != nil {
		return nil, &Error{Code: JSONRPCInternalError, Message: err.Error()}
	}
	log.Printf(ctx, "task %q completed", task.ID)
	return task, nil
}

// invokeWorker opens a worker caller, invokes the tool, and guarantees the
// caller is closed before returning.
func (h *WorkerHandler) invokeWorker(ctx context.Context, query string) (map[string]any, error) {
	caller, err := h.workers(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening worker: %w", err)
	}
	defer func() {
		if cerr := caller.Close(); cerr != nil {
			log.Errorf(ctx, cerr, "closing worker caller")
		}
	}()
	return caller.CallTool(ctx, h.tool, map[string]any{h.argName: query})
}

// fail finalizes the task as failed with the conventional error artifact.
func (h *WorkerHandler) fail(ctx context.Context, taskID, message string) (*types.Task, error) {
	log.Printf(ctx, "task %q failed: %s", taskID, message)
	task, err := h.store.UpdateStatus(taskID, types.NewStatus(types.TaskFailed, ""), []*types.Artifact{
		types.NewErrorArtifact(message),
	})
	if err != nil {
		return nil, &Error{Code: JSONRPCInternalError, Message: err.Error()}
	}
	return task, nil
}
