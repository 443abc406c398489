package mongo

import (
	"context"
	"errors"

	clientsmongo "goa.design/horizon/features/session/mongo/clients/mongo"
	"goa.design/horizon/runtime/session"
)

// Store implements session.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

var _ session.Store = (*Store)(nil)

// NewStore builds a Store using the provided client.
func NewStore(client clientsmongo.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// GetOrCreate implements session.Store.
func (s *Store) GetOrCreate(ctx context.Context, userID, sessionID string) (*session.Session, error) {
	return s.client.GetOrCreateSession(ctx, userID, sessionID)
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.client.LoadSession(ctx, sessionID)
}

// ApplyDelta implements session.Store.
func (s *Store) ApplyDelta(ctx context.Context, sessionID string, delta session.Delta) (*session.Session, error) {
	return s.client.ApplyDelta(ctx, sessionID, delta)
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.DeleteSession(ctx, sessionID)
}
