// Package httpclient provides the JSON-RPC 2.0 HTTP implementation of the
// a2a.Caller interface.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/types"
)

type (
	// Client is a JSON-RPC 2.0 client for a single remote A2A agent.
	Client struct {
		endpoint string
		client   *http.Client
		headers  map[string]string
		nextID   uint64
	}

	// Option configures a Client.
	Option func(*Client)

	rpcRequest struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}

	rpcResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      uint64          `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *a2a.Error      `json:"error,omitempty"`
	}
)

// defaultTimeout bounds a single tasks/send round trip. Specialist tasks
// include worker execution so this is deliberately generous.
const defaultTimeout = 30 * time.Second

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.headers[key] = value }
}

// WithBearerToken adds an Authorization bearer header to every request.
func WithBearerToken(token string) Option {
	return func(cl *Client) { cl.headers["Authorization"] = "Bearer " + token }
}

// New creates a client that sends JSON-RPC requests to the given endpoint
// URL.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		headers:  make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SendTask implements a2a.Caller.
func (c *Client) SendTask(ctx context.Context, p *types.SendTaskPayload) (*types.Task, error) {
	var task types.Task
	if err := c.call(ctx, "tasks/send", p, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask returns the current snapshot of a previously submitted task.
func (c *Client) GetTask(ctx context.Context, p *types.GetTaskPayload) (*types.Task, error) {
	var task types.Task
	if err := c.call(ctx, "tasks/get", p, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// call performs one JSON-RPC round trip and decodes the result into out.
// Protocol errors are returned as *a2a.Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s request: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}
