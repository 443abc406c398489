// Package mongo hosts the MongoDB client used by the session store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/horizon/runtime/session"
)

const (
	defaultCollection = "live_sessions"
	defaultOpTimeout  = 5 * time.Second
	clientName        = "session-mongo"
)

// Client exposes Mongo-backed operations for live sessions.
type Client interface {
	health.Pinger

	GetOrCreateSession(ctx context.Context, userID, sessionID string) (*session.Session, error)
	LoadSession(ctx context.Context, sessionID string) (*session.Session, error)
	ApplyDelta(ctx context.Context, sessionID string, delta session.Delta) (*session.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Options configures the Mongo session client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo    *mongodriver.Client
	sessions *mongodriver.Collection
	timeout  time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{
		mongo:    opts.Client,
		sessions: opts.Client.Database(opts.Database).Collection(coll),
		timeout:  timeout,
	}, nil
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) GetOrCreateSession(ctx context.Context, userID, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"_id": sessionID}
	// Idempotent insert: an existing session is returned untouched.
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":           userID,
			"state":             bson.M{},
			"artifact_versions": bson.M{},
			"created_at":        now,
			"updated_at":        now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var sess session.Session
	if err := c.sessions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&sess); err != nil {
		return nil, err
	}
	normalize(&sess)
	return &sess, nil
}

func (c *client) LoadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var sess session.Session
	err := c.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&sess)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	normalize(&sess)
	return &sess, nil
}

func (c *client) ApplyDelta(ctx context.Context, sessionID string, delta session.Delta) (*session.Session, error) {
	if delta.Empty() {
		return c.LoadSession(ctx, sessionID)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range delta.State {
		set["state."+k] = v
	}
	for k, v := range delta.Artifacts {
		set["artifact_versions."+k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sess session.Session
	err := c.sessions.FindOneAndUpdate(ctx, bson.M{"_id": sessionID}, bson.M{"$set": set}, opts).Decode(&sess)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	normalize(&sess)
	return &sess, nil
}

func (c *client) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.sessions.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

// normalize ensures map fields decoded from BSON are non-nil so callers can
// index them without guarding.
func normalize(sess *session.Session) {
	if sess.State == nil {
		sess.State = make(map[string]any)
	}
	if sess.ArtifactVersions == nil {
		sess.ArtifactVersions = make(map[string]int)
	}
}
