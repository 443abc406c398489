// Package session defines the conversational session model shared by the
// live bridge and the delegation layer, and the Store interface its backends
// implement.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound indicates the session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
)

type (
	// Session is a snapshot of one user conversation. State carries
	// arbitrary key/value context accumulated across turns (including
	// control flags such as mock_a2a_calls); ArtifactVersions tracks the
	// latest version of each artifact produced during the conversation.
	Session struct {
		// ID uniquely identifies the session.
		ID string `json:"id" bson:"_id"`
		// UserID identifies the user the session belongs to.
		UserID string `json:"userId" bson:"user_id"`
		// State holds conversation-scoped key/value context.
		State map[string]any `json:"state" bson:"state"`
		// ArtifactVersions maps artifact name to its latest version.
		ArtifactVersions map[string]int `json:"artifactVersions" bson:"artifact_versions"`
		// CreatedAt is when the session was first created.
		CreatedAt time.Time `json:"createdAt" bson:"created_at"`
		// UpdatedAt is when the session last changed.
		UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
	}

	// Delta is an incremental mutation applied to a session. State entries
	// overwrite existing keys; Artifacts entries overwrite version numbers.
	Delta struct {
		// State holds key/value pairs to merge into the session state.
		State map[string]any
		// Artifacts holds artifact versions to merge.
		Artifacts map[string]int
	}

	// Store persists sessions. Implementations must be safe for concurrent
	// use and must serialize mutations to the same session so concurrent
	// deltas never interleave partially.
	Store interface {
		// GetOrCreate loads the session if it exists, otherwise creates an
		// empty one bound to the user.
		GetOrCreate(ctx context.Context, userID, sessionID string) (*Session, error)
		// Load returns a snapshot of the session or ErrSessionNotFound.
		Load(ctx context.Context, sessionID string) (*Session, error)
		// ApplyDelta merges the delta into the session atomically and
		// returns the updated snapshot.
		ApplyDelta(ctx context.Context, sessionID string, delta Delta) (*Session, error)
		// Delete removes the session. Deleting an unknown session is a
		// no-op.
		Delete(ctx context.Context, sessionID string) error
	}
)

// Empty reports whether the delta carries no mutations.
func (d Delta) Empty() bool {
	return len(d.State) == 0 && len(d.Artifacts) == 0
}

// Flag returns the boolean value of a state key, defaulting to false when
// the key is absent or not a bool.
func (s *Session) Flag(key string) bool {
	if s == nil {
		return false
	}
	v, ok := s.State[key].(bool)
	return ok && v
}
