package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"goa.design/clue/log"
)

// writeTimeout bounds a single frame write to a slow client.
const writeTimeout = 10 * time.Second

// wsConn adapts a gorilla websocket connection to ClientConn. Writes are
// serialized because both relay loops may emit frames.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var _ ClientConn = (*wsConn)(nil)

// Read implements ClientConn. A pending read is unblocked when ctx is
// canceled by expiring the read deadline.
func (c *wsConn) Read(ctx context.Context) (*ClientMessage, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		if _, ok := err.(net.Error); ok {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading client frame: %w", err)
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decoding client message: %w", err)
	}
	return &msg, nil
}

// Write implements ClientConn.
func (c *wsConn) Write(_ context.Context, msg *ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = c.conn.Close()
}

// Handler upgrades HTTP requests to websocket live sessions. The session id
// comes from the "session" path value; the user id from the optional "user"
// query parameter. Routes should look like:
//
//	mux.Handle("GET /ws/{session}", bridge.Handler(b))
func Handler(b *Bridge) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1 << 14,
		WriteBufferSize: 1 << 14,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("session")
		if sessionID == "" {
			http.Error(w, "session id is required", http.StatusBadRequest)
			return
		}
		userID := r.URL.Query().Get("user")
		if userID == "" {
			userID = "anonymous"
		}

		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf(r.Context(), err, "upgrading live connection for session %q", sessionID)
			return
		}
		conn := &wsConn{conn: raw}

		// The client never sees internal error detail, only a close code.
		if err := b.Serve(r.Context(), userID, sessionID, conn); err != nil {
			log.Errorf(r.Context(), err, "live session %q terminated", sessionID)
			conn.close(websocket.CloseInternalServerErr, "internal error")
			return
		}
		conn.close(websocket.CloseNormalClosure, "")
	})
}
