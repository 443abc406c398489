package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"
	"golang.org/x/time/rate"

	"goa.design/horizon/runtime/a2a/types"
)

type (
	// Server exposes the A2A protocol surface over JSON-RPC 2.0 HTTP. It
	// supports tasks/send and tasks/get; tasks/sendSubscribe is explicitly
	// rejected with an unsupported-operation error because specialists built
	// on this server are one-shot request/response agents.
	Server struct {
		card    *types.AgentCard
		handler TaskHandler
		store   TaskStore
		limiter *rate.Limiter
	}

	// ServerOption configures optional aspects of the Server.
	ServerOption func(*Server)

	rpcRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}

	rpcResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Result  any             `json:"result,omitempty"`
		Error   *Error          `json:"error,omitempty"`
	}
)

// WithRateLimit bounds the number of task requests the server accepts per
// second. Requests beyond the limit are rejected with CodeServerOverloaded.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewServer creates an A2A server serving the given agent card and delegating
// task execution to the handler. The store backs tasks/get lookups and must
// be the same store the handler finalizes tasks in.
func NewServer(card *types.AgentCard, handler TaskHandler, store TaskStore, opts ...ServerOption) (*Server, error) {
	if card == nil {
		return nil, fmt.Errorf("agent card is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("task handler is required")
	}
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	s := &Server{card: card, handler: handler, store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// ServeHTTP implements the JSON-RPC endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &Error{Code: JSONRPCParseError, Message: "invalid JSON payload"}})
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeServerOverloaded, Message: "server overloaded, retry later"}})
		return
	}

	switch req.Method {
	case "tasks/send":
		var p types.SendTaskPayload
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" || p.Message == nil {
			writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: JSONRPCInvalidParams, Message: "tasks/send requires id and message"}})
			return
		}
		tracer := otel.Tracer("goa.design/horizon/runtime/a2a")
		ctx, span := tracer.Start(ctx, "a2a.tasks.send")
		span.SetAttributes(
			attribute.String("a2a.task_id", p.ID),
			attribute.String("a2a.session_id", p.SessionID),
		)
		task, err := s.handler.HandleTask(ctx, &p)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.End()
			writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: asProtocolError(err)})
			return
		}
		span.SetAttributes(attribute.String("a2a.task_state", string(task.Status.State)))
		span.End()
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: task})

	case "tasks/get":
		var p types.GetTaskPayload
		if err := json.Unmarshal(req.Params, &p); err != nil || p.ID == "" {
			writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: JSONRPCInvalidParams, Message: "tasks/get requires id"}})
			return
		}
		task, err := s.store.Load(p.ID)
		if err != nil {
			writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: CodeTaskNotFound, Message: err.Error()}})
			return
		}
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: task})

	case "tasks/sendSubscribe":
		log.Printf(ctx, "rejecting tasks/sendSubscribe: streaming not supported")
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{
			Code:    CodeUnsupportedOperation,
			Message: "streaming (tasks/sendSubscribe) is not supported by this agent",
		}})

	default:
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: JSONRPCMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}})
	}
}

// CardHandler serves the agent discovery document at the well-known path.
func (s *Server) CardHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.card); err != nil {
			log.Errorf(r.Context(), err, "encoding agent card")
		}
	})
}

// asProtocolError normalizes handler errors into JSON-RPC errors.
func asProtocolError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &Error{Code: JSONRPCInternalError, Message: err.Error()}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
