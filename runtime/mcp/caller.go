// Package mcp provides MCP (Model Context Protocol) client implementations
// for invoking worker tools via HTTP JSON-RPC or a stdio subprocess. Callers
// adapt transport-specific clients to the unified Caller interface used by
// specialist task handlers.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// JSON-RPC 2.0 canonical error codes.
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Caller invokes MCP tools on behalf of a task handler. It is implemented by
// transport-specific clients (HTTP, stdio subprocess).
//
// Tool-domain failures are reported inside the result map under the "error"
// key; the error return is reserved for transport and protocol faults.
// Callers own transport resources: Close must be invoked once the invocation
// completes, independent of outcome.
type Caller interface {
	// CallTool invokes the named tool with the given arguments and returns
	// the decoded result object.
	CallTool(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
	// Close releases transport resources (connections, subprocess).
	// It is idempotent.
	Close() error
}

// Error represents a JSON-RPC error returned by an MCP server.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

type (
	rpcRequest struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		ID      uint64 `json:"id,omitempty"`
		Params  any    `json:"params,omitempty"`
	}

	rpcResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
		ID      uint64          `json:"id"`
	}

	// toolCallResult mirrors the MCP tools/call result shape: a list of
	// content parts plus an error flag.
	toolCallResult struct {
		Content []toolContent `json:"content"`
		IsError bool          `json:"isError"`
	}

	toolContent struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}
)

// decodeToolResult normalizes an MCP tools/call result into a generic map.
// The first text content part is expected to hold a JSON object; tool-level
// errors are returned as a map with an "error" key so handlers treat them as
// task-domain failures rather than transport faults.
func decodeToolResult(raw json.RawMessage) (map[string]any, error) {
	var res toolCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding tool result: %w", err)
	}
	if len(res.Content) == 0 {
		return nil, fmt.Errorf("missing content in tool response")
	}
	first := res.Content[0]
	if first.Type != "text" {
		return nil, fmt.Errorf("unexpected content type %q in tool response", first.Type)
	}
	if res.IsError {
		return map[string]any{"error": fmt.Sprintf("tool error: %s", first.Text)}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(first.Text), &out); err != nil {
		return nil, fmt.Errorf("tool returned non-JSON text: %w", err)
	}
	return out, nil
}
