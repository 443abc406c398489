// Package a2a implements the A2A (Agent-to-Agent) task protocol: the
// specialist-side JSON-RPC server with its task lifecycle store, and the
// Caller interface implemented by transport-specific clients (see the
// httpclient subpackage).
package a2a

import (
	"context"

	"goa.design/horizon/runtime/a2a/types"
)

const (
	// JSON-RPC 2.0 canonical error codes.
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603

	// A2A protocol error codes.
	CodeTaskNotFound         = -32001
	CodeUnsupportedOperation = -32004
	CodeServerOverloaded     = -32000
)

// Caller sends a single task to a remote specialist and blocks for the
// terminal response. It is implemented by transport-specific clients.
type Caller interface {
	// SendTask invokes tasks/send on the remote agent and returns the final
	// task snapshot. Protocol-level faults are returned as *Error.
	SendTask(ctx context.Context, p *types.SendTaskPayload) (*types.Task, error)
}

// Error represents a JSON-RPC error returned by an A2A server.
type Error struct {
	// Code is the JSON-RPC or A2A error code.
	Code int `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
