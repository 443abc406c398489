// Package inmem provides an in-memory implementation of session.Store.
//
// It is intended for tests and local development. Production deployments
// should use a durable implementation (for example features/session/mongo).
package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"goa.design/horizon/runtime/session"
)

// Store is an in-memory implementation of session.Store. It is safe for
// concurrent use; a single mutex serializes all mutations so concurrent
// deltas to the same session apply one at a time.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

// GetOrCreate implements session.Store.
func (s *Store) GetOrCreate(_ context.Context, userID, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		return clone(existing), nil
	}
	now := time.Now().UTC()
	sess := &session.Session{
		ID:               sessionID,
		UserID:           userID,
		State:            make(map[string]any),
		ArtifactVersions: make(map[string]int),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.sessions[sessionID] = sess
	return clone(sess), nil
}

// Load implements session.Store.
func (s *Store) Load(_ context.Context, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return clone(existing), nil
}

// ApplyDelta implements session.Store.
func (s *Store) ApplyDelta(_ context.Context, sessionID string, delta session.Delta) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	for k, v := range delta.State {
		existing.State[k] = v
	}
	for k, v := range delta.Artifacts {
		existing.ArtifactVersions[k] = v
	}
	if !delta.Empty() {
		existing.UpdatedAt = time.Now().UTC()
	}
	return clone(existing), nil
}

// Delete implements session.Store.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// clone deep-copies a session so snapshots handed to callers cannot race
// with subsequent store mutations.
func clone(sess *session.Session) *session.Session {
	cp := *sess
	cp.State = make(map[string]any, len(sess.State))
	for k, v := range sess.State {
		cp.State[k] = v
	}
	cp.ArtifactVersions = make(map[string]int, len(sess.ArtifactVersions))
	for k, v := range sess.ArtifactVersions {
		cp.ArtifactVersions[k] = v
	}
	return &cp
}
