package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// HTTPCaller implements Caller using JSON-RPC 2.0 over HTTP POST.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
	id       uint64
}

// HTTPOption configures an HTTPCaller.
type HTTPOption func(*HTTPCaller)

// WithHTTPClient overrides the underlying *http.Client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPCaller) {
		h.client = c
	}
}

// WithTimeout sets the per-request timeout. The default is 30 seconds so a
// stalled worker cannot hold a task handler indefinitely.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPCaller) {
		h.client.Timeout = d
	}
}

// NewHTTPCaller creates an HTTP-based Caller targeting the given JSON-RPC
// endpoint.
func NewHTTPCaller(endpoint string, opts ...HTTPOption) (*HTTPCaller, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("mcp endpoint is required")
	}
	h := &HTTPCaller{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Ensure HTTPCaller implements Caller.
var _ Caller = (*HTTPCaller)(nil)

func (h *HTTPCaller) nextID() uint64 {
	return atomic.AddUint64(&h.id, 1)
}

// CallTool invokes tools/call on the MCP endpoint and normalizes the result.
func (h *HTTPCaller) CallTool(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	rpcReq := rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		ID:      h.nextID(),
		Params: map[string]any{
			"name":      tool,
			"arguments": args,
		},
	}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mcp rpc status %d: %s", resp.StatusCode, string(raw))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return decodeToolResult(rpcResp.Result)
}

// Close releases idle connections held by the underlying client.
func (h *HTTPCaller) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
