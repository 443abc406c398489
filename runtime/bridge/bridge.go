// Package bridge multiplexes one duplex client connection with one upstream
// live agent run: upstream events are relayed to the client as JSON messages
// while client input is relayed to the run's request queue, with session
// state deltas applied along the way.
package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"

	"goa.design/horizon/runtime/live"
	"goa.design/horizon/runtime/session"
)

// ControlAuthor tags synthetic events injected by the client's control
// surface rather than the upstream agent.
const ControlAuthor = "ui_control"

// defaultAudioMIME is the MIME type client audio chunks are forwarded with.
const defaultAudioMIME = "audio/pcm"

type (
	// ClientConn is one duplex client connection. Read blocks until a
	// message arrives, the peer disconnects (io.EOF), or ctx is canceled.
	ClientConn interface {
		Read(ctx context.Context) (*ClientMessage, error)
		Write(ctx context.Context, msg *ServerMessage) error
	}

	// Bridge relays between client connections and upstream live runs.
	Bridge struct {
		sessions  session.Store
		runner    live.Runner
		audioMIME string
	}

	// Option configures a Bridge.
	Option func(*Bridge)
)

// WithAudioMIME overrides the MIME type used when forwarding client audio
// upstream.
func WithAudioMIME(mime string) Option {
	return func(b *Bridge) { b.audioMIME = mime }
}

// New creates a bridge backed by the given session store and runner.
func New(sessions session.Store, runner live.Runner, opts ...Option) *Bridge {
	b := &Bridge{sessions: sessions, runner: runner, audioMIME: defaultAudioMIME}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Serve runs one live session over the client connection until either side
// terminates. It opens (or creates) the session, starts the upstream run,
// relays in both directions concurrently, and tears everything down before
// returning. A client disconnect is a normal termination and returns nil.
func (b *Bridge) Serve(ctx context.Context, userID, sessionID string, conn ClientConn) (err error) {
	tracer := otel.Tracer("goa.design/horizon/runtime/bridge")
	ctx, span := tracer.Start(ctx, "bridge.session")
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.user_id", userID),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sess, err := b.sessions.GetOrCreate(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("opening session %q: %w", sessionID, err)
	}
	log.Printf(ctx, "live session %q connected", sessionID)

	run, err := b.runner.RunLive(ctx, sess)
	if err != nil {
		b.deleteSession(ctx, sessionID)
		return fmt.Errorf("starting live run for session %q: %w", sessionID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 2)
	go func() { done <- b.relayUpstream(ctx, run, conn, sess) }()
	go func() { done <- b.relayDownstream(ctx, run.Queue(), conn, sess) }()

	// First loop to finish wins; cancel and await the sibling so neither
	// direction outlives the other.
	first := <-done
	cancel()
	run.Queue().Close()
	second := <-done

	b.deleteSession(context.WithoutCancel(ctx), sessionID)
	log.Printf(ctx, "live session %q closed", sessionID)

	if err := firstFailure(first, second); err != nil {
		return fmt.Errorf("live session %q: %w", sessionID, err)
	}
	return nil
}

// deleteSession removes the session from the store as part of teardown.
func (b *Bridge) deleteSession(ctx context.Context, sessionID string) {
	if err := b.sessions.Delete(ctx, sessionID); err != nil {
		log.Errorf(ctx, err, "deleting session %q", sessionID)
	}
}

// firstFailure returns the first real error among the relay results,
// treating cancellation as clean shutdown.
func firstFailure(errs ...error) error {
	for _, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		return err
	}
	return nil
}

// relayUpstream forwards upstream events to the client until the event
// stream ends or ctx is canceled.
func (b *Bridge) relayUpstream(ctx context.Context, run *live.Run, conn ClientConn, sess *session.Session) error {
	audioChunks := 0
	for {
		var (
			ev live.Event
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok = <-run.Events():
			if !ok {
				return run.Err()
			}
		}

		if ev.Interrupted {
			if err := conn.Write(ctx, &ServerMessage{Type: ServerInterrupted}); err != nil {
				return clientErr(err)
			}
		}
		if blob := firstAudioPart(ev); blob != nil {
			msg := &ServerMessage{Type: ServerAudio, Data: base64.StdEncoding.EncodeToString(blob.Data)}
			if err := conn.Write(ctx, msg); err != nil {
				return clientErr(err)
			}
			audioChunks++
		}
		if ev.TurnComplete {
			if err := conn.Write(ctx, &ServerMessage{Type: ServerTurnComplete}); err != nil {
				return clientErr(err)
			}
			log.Printf(ctx, "turn complete in session %q after %d audio chunks", sess.ID, audioChunks)
			audioChunks = 0
		}
		if !ev.Actions.Empty() {
			updated, err := b.applyActions(ctx, sess.ID, ev.Actions)
			if err != nil {
				return err
			}
			sess = updated
		}
	}
}

// firstAudioPart returns the event's blob when its first content part is
// binary with an audio MIME type. Only the first part is inspected.
func firstAudioPart(ev live.Event) *live.Blob {
	if ev.Content == nil || len(ev.Content.Parts) == 0 {
		return nil
	}
	first := ev.Content.Parts[0]
	if first == nil || first.Blob == nil || !strings.HasPrefix(first.Blob.MIMEType, "audio/") {
		return nil
	}
	return first.Blob
}

// applyActions merges an event's deltas into the session and returns the
// refreshed snapshot so subsequent logic sees the update.
func (b *Bridge) applyActions(ctx context.Context, sessionID string, actions live.Actions) (*session.Session, error) {
	updated, err := b.sessions.ApplyDelta(ctx, sessionID, actions.SessionDelta())
	if err != nil {
		return nil, fmt.Errorf("applying session delta: %w", err)
	}
	return updated, nil
}

// relayDownstream forwards client messages to the run's request queue until
// the client disconnects or ctx is canceled.
func (b *Bridge) relayDownstream(ctx context.Context, queue *live.RequestQueue, conn ClientConn, sess *session.Session) error {
	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			return clientErr(err)
		}

		switch msg.Type {
		case ClientAudio:
			data, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				log.Printf(ctx, "dropping audio chunk with invalid base64 in session %q", sess.ID)
				continue
			}
			if len(data) == 0 {
				log.Printf(ctx, "dropping empty audio chunk in session %q", sess.ID)
				continue
			}
			if err := queue.SendRealtime(&live.Blob{MIMEType: b.audioMIME, Data: data}); err != nil {
				return queueErr(err)
			}

		case ClientText:
			if msg.Data == "" {
				log.Printf(ctx, "dropping empty text turn in session %q", sess.ID)
				continue
			}
			content := &live.Content{Parts: []*live.Part{{Text: msg.Data}}}
			if err := queue.SendContent(content); err != nil {
				return queueErr(err)
			}

		case ClientEndOfTurn:
			// Turn boundaries are inferred upstream from content alone.

		case ClientToggleMock:
			// Synthetic control event: applied straight to the session,
			// bypassing the upstream event source.
			ev := live.Event{
				Author:  ControlAuthor,
				Actions: live.Actions{StateDelta: map[string]any{"mock_a2a_calls": msg.Value}},
			}
			if _, err := b.applyActions(ctx, sess.ID, ev.Actions); err != nil {
				return err
			}
			log.Printf(ctx, "session %q mock_a2a_calls set to %t", sess.ID, msg.Value)

		default:
			log.Printf(ctx, "ignoring unknown client message type %q in session %q", msg.Type, sess.ID)
		}
	}
}

// clientErr normalizes connection termination: a peer disconnect or context
// cancellation is a clean end, anything else is a real error.
func clientErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// queueErr treats a closed queue as clean shutdown: the upstream run ended
// and the sibling loop is about to notice.
func queueErr(err error) error {
	if errors.Is(err, live.ErrQueueClosed) {
		return nil
	}
	return err
}
