package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"goa.design/clue/log"
)

// JSON-RPC error codes used by the worker.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

const (
	protocolVersion = "2024-11-05"
	toolName        = "get_quote"
)

type (
	rpcRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}

	rpcResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Result  any             `json:"result,omitempty"`
		Error   *rpcError       `json:"error,omitempty"`
	}

	rpcError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	callParams struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	toolContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	callResult struct {
		Content []toolContent `json:"content"`
		IsError bool          `json:"isError,omitempty"`
	}

	// worker dispatches MCP requests against the quote book.
	worker struct {
		book *quoteBook
	}
)

// handle processes one request and returns the response, or nil for
// notifications.
func (w *worker) handle(req *rpcRequest) *rpcResponse {
	if len(req.ID) == 0 {
		// Notification (e.g. notifications/initialized): no response.
		return nil
	}

	switch req.Method {
	case "initialize":
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "horizon-quoted", "version": "1.0.0"},
		}}

	case "tools/list":
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"tools": []map[string]any{{
				"name":        toolName,
				"description": "Return the current indicative price for a ticker symbol.",
				"inputSchema": map[string]any{
					"type":       "object",
					"required":   []string{"symbol"},
					"properties": map[string]any{"symbol": map[string]any{"type": "string"}},
				},
			}},
		}}

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid tools/call params"}}
		}
		if params.Name != toolName {
			return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown tool %q", params.Name)}}
		}
		symbol, _ := params.Arguments["symbol"].(string)
		payload, err := json.Marshal(w.book.Lookup(symbol))
		if err != nil {
			return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}}
		}
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: callResult{
			Content: []toolContent{{Type: "text", Text: string(payload)}},
		}}

	default:
		return &rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}}
	}
}

// serveStdio reads newline-delimited JSON-RPC requests from in and writes
// responses to out until in is exhausted.
func (w *worker) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Errorf(ctx, err, "dropping malformed request line")
			continue
		}
		resp := w.handle(&req)
		if resp == nil {
			continue
		}
		mu.Lock()
		err := enc.Encode(resp)
		mu.Unlock()
		if err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return scanner.Err()
}

// httpHandler serves the same JSON-RPC surface over HTTP POST.
func (w *worker) httpHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			resp := &rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "invalid JSON payload"}}
			writeJSON(rw, resp)
			return
		}
		resp := w.handle(&req)
		if resp == nil {
			rw.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(rw, resp)
	})
}

func writeJSON(rw http.ResponseWriter, resp *rpcResponse) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}
