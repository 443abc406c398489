package a2a

import (
	"errors"
	"sync"

	"goa.design/horizon/runtime/a2a/types"
)

var (
	// ErrTaskNotFound indicates the task id is unknown to the store.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinal indicates an attempt to transition a task out of a
	// terminal state. Callers must create a new task id for retries.
	ErrTaskFinal = errors.New("task is in a terminal state")
)

type (
	// TaskStore is the authoritative map from task id to Task, shared between
	// a specialist's task handler and any concurrent readers. Implementations
	// must be safe for concurrent use.
	TaskStore interface {
		// Upsert creates a task in the submitted state if absent, otherwise
		// returns the existing task unchanged. Re-submission is a no-op on
		// content; status and artifacts only change through UpdateStatus.
		Upsert(p *types.SendTaskPayload) (*types.Task, error)
		// UpdateStatus overwrites status and artifacts for an existing task.
		// It returns ErrTaskNotFound for unknown ids and ErrTaskFinal when the
		// stored status is already terminal.
		UpdateStatus(taskID string, status types.TaskStatus, artifacts []*types.Artifact) (*types.Task, error)
		// Load returns a snapshot of the task, or ErrTaskNotFound.
		Load(taskID string) (*types.Task, error)
	}

	// MemoryTaskStore is the in-memory TaskStore implementation. It is safe
	// for concurrent use by multiple goroutines.
	MemoryTaskStore struct {
		mu    sync.RWMutex
		tasks map[string]*types.Task
	}
)

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*types.Task)}
}

// Upsert implements TaskStore.
func (s *MemoryTaskStore) Upsert(p *types.SendTaskPayload) (*types.Task, error) {
	if p == nil || p.ID == "" {
		return nil, errors.New("task id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[p.ID]; ok {
		return cloneTask(existing), nil
	}
	task := &types.Task{
		ID:        p.ID,
		SessionID: p.SessionID,
		Status:    types.NewStatus(types.TaskSubmitted, ""),
		Metadata:  p.Metadata,
	}
	s.tasks[p.ID] = task
	return cloneTask(task), nil
}

// UpdateStatus implements TaskStore.
func (s *MemoryTaskStore) UpdateStatus(taskID string, status types.TaskStatus, artifacts []*types.Artifact) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status.State.Terminal() {
		return nil, ErrTaskFinal
	}
	task.Status = status
	task.Artifacts = artifacts
	return cloneTask(task), nil
}

// Load implements TaskStore.
func (s *MemoryTaskStore) Load(taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// cloneTask creates a deep copy of a Task so snapshots returned to callers
// cannot race with subsequent store mutations.
func cloneTask(t *types.Task) *types.Task {
	if t == nil {
		return nil
	}
	cp := &types.Task{
		ID:        t.ID,
		SessionID: t.SessionID,
		Status:    t.Status,
	}
	if len(t.Artifacts) > 0 {
		cp.Artifacts = make([]*types.Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			cp.Artifacts[i] = cloneArtifact(a)
		}
	}
	if len(t.Metadata) > 0 {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

func cloneArtifact(a *types.Artifact) *types.Artifact {
	if a == nil {
		return nil
	}
	cp := &types.Artifact{
		Name:        a.Name,
		Description: a.Description,
	}
	if len(a.Parts) > 0 {
		cp.Parts = make([]*types.MessagePart, len(a.Parts))
		for i, p := range a.Parts {
			cp.Parts[i] = clonePart(p)
		}
	}
	return cp
}

func clonePart(p *types.MessagePart) *types.MessagePart {
	if p == nil {
		return nil
	}
	cp := &types.MessagePart{
		Type: p.Type,
		Text: p.Text,
	}
	if len(p.Data) > 0 {
		cp.Data = make([]byte, len(p.Data))
		copy(cp.Data, p.Data)
	}
	return cp
}
