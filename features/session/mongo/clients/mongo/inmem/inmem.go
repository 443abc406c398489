// Package inmem provides an in-memory fake of the Mongo session client for
// tests.
package inmem

import (
	"context"
	"sync"
	"time"

	"goa.design/horizon/runtime/session"
)

// Client is an in-memory implementation of the Mongo session client
// interface. It mirrors the semantics of the real client well enough for
// store-level tests.
type Client struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	// PingErr, when set, is returned by Ping.
	PingErr error
}

// New returns an empty fake client.
func New() *Client {
	return &Client{sessions: make(map[string]*session.Session)}
}

// Name implements health.Pinger.
func (c *Client) Name() string { return "session-mongo-inmem" }

// Ping implements health.Pinger.
func (c *Client) Ping(context.Context) error { return c.PingErr }

// GetOrCreateSession implements the client interface.
func (c *Client) GetOrCreateSession(_ context.Context, userID, sessionID string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[sessionID]; ok {
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
	c.sessions[sessionID] = sess
	return clone(sess), nil
}

// LoadSession implements the client interface.
func (c *Client) LoadSession(_ context.Context, sessionID string) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.sessions[sessionID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return clone(existing), nil
}

// ApplyDelta implements the client interface.
func (c *Client) ApplyDelta(_ context.Context, sessionID string, delta session.Delta) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.sessions[sessionID]
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

// DeleteSession implements the client interface.
func (c *Client) DeleteSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	return nil
}

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
