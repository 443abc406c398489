package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// StdioCaller implements Caller over a worker subprocess speaking
// newline-delimited JSON-RPC on stdin/stdout. One subprocess is launched per
// caller; Close terminates it, so task handlers get guaranteed per-request
// teardown by deferring Close.
type StdioCaller struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	id     uint64

	closeOnce sync.Once
	closeErr  error
}

// NewStdioCaller launches the worker command and performs the MCP initialize
// handshake. The subprocess inherits ctx: cancelling it kills the worker.
func NewStdioCaller(ctx context.Context, command string, args ...string) (*StdioCaller, error) {
	if command == "" {
		return nil, fmt.Errorf("worker command is required")
	}
	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %q: %w", command, err)
	}

	c := &StdioCaller{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}
	if err := c.initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Ensure StdioCaller implements Caller.
var _ Caller = (*StdioCaller)(nil)

func (c *StdioCaller) nextID() uint64 {
	return atomic.AddUint64(&c.id, 1)
}

// initialize performs the MCP handshake: an initialize request followed by
// the initialized notification.
func (c *StdioCaller) initialize(ctx context.Context) error {
	resp, err := c.roundTrip(ctx, rpcRequest{
		JSONRPC: "2.0",
		Method:  "initialize",
		ID:      c.nextID(),
		Params: map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]any{"name": "horizon", "version": "1.0.0"},
			"capabilities":    map[string]any{},
		},
	})
	if err != nil {
		return fmt.Errorf("mcp initialize: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("mcp initialize: %w", resp.Error)
	}
	// Notifications have no id and expect no response.
	return c.send(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
}

// CallTool invokes tools/call on the worker subprocess.
func (c *StdioCaller) CallTool(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	resp, err := c.roundTrip(ctx, rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		ID:      c.nextID(),
		Params: map[string]any{
			"name":      tool,
			"arguments": args,
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return decodeToolResult(resp.Result)
}

func (c *StdioCaller) send(req rpcRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	body = append(body, '\n')
	if _, err := c.stdin.Write(body); err != nil {
		return fmt.Errorf("writing to worker: %w", err)
	}
	return nil
}

// roundTrip writes one request line and reads response lines until the one
// matching the request id arrives, skipping interleaved notifications.
func (c *StdioCaller) roundTrip(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	if err := c.send(req); err != nil {
		return nil, err
	}

	type result struct {
		resp *rpcResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := c.stdout.ReadBytes('\n')
			if err != nil {
				ch <- result{err: fmt.Errorf("reading from worker: %w", err)}
				return
			}
			var resp rpcResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				ch <- result{err: fmt.Errorf("decoding worker response: %w", err)}
				return
			}
			if resp.ID != req.ID {
				continue
			}
			ch <- result{resp: &resp}
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

// Close terminates the worker subprocess. It is idempotent and safe to call
// concurrently with an in-flight invocation.
func (c *StdioCaller) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		c.closeErr = c.cmd.Wait()
	})
	return c.closeErr
}
