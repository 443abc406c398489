package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return string(raw)
}

func TestQuoteBookLookup(t *testing.T) {
	book := newQuoteBook(1)

	result := book.Lookup("goog")
	assert.Equal(t, "GOOG", result["symbol"])
	assert.Equal(t, "USD", result["currency"])
	price, ok := result["price"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 172.5, price, 2.0)

	result = book.Lookup("ZZZZ")
	assert.Equal(t, "unknown symbol: ZZZZ", result["error"])

	result = book.Lookup("  ")
	assert.Equal(t, "symbol is required", result["error"])
}

func TestWorkerToolCall(t *testing.T) {
	w := &worker{book: newQuoteBook(1)}

	resp := w.handle(&rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "get_quote", "arguments": {"symbol": "AAPL"}}`),
	})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(callResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	assert.Equal(t, "AAPL", payload["symbol"])
}

func TestWorkerUnknownToolAndMethod(t *testing.T) {
	w := &worker{book: newQuoteBook(1)}

	resp := w.handle(&rpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "get_weather", "arguments": {}}`),
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = w.handle(&rpcRequest{JSONRPC: "2.0", ID: json.RawMessage("2"), Method: "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestWorkerNotificationsProduceNoResponse(t *testing.T) {
	w := &worker{book: newQuoteBook(1)}
	resp := w.handle(&rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	assert.Nil(t, resp)
}

func TestServeStdio(t *testing.T) {
	w := &worker{book: newQuoteBook(1)}

	in := strings.Join([]string{
		request(t, 1, "initialize", map[string]any{"protocolVersion": protocolVersion}),
		`{"jsonrpc": "2.0", "method": "notifications/initialized"}`,
		request(t, 2, "tools/call", map[string]any{"name": "get_quote", "arguments": map[string]any{"symbol": "MSFT"}}),
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, w.serveStdio(context.Background(), strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2) // the notification gets no response

	var initResp rpcResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	assert.Nil(t, initResp.Error)

	var callResp struct {
		Result callResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &callResp))
	require.Len(t, callResp.Result.Content, 1)
	assert.Contains(t, callResp.Result.Content[0].Text, "MSFT")
}
