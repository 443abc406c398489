package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateTerminal(t *testing.T) {
	assert.False(t, TaskSubmitted.Terminal())
	assert.False(t, TaskWorking.Terminal())
	assert.True(t, TaskCompleted.Terminal())
	assert.True(t, TaskFailed.Terminal())
	assert.True(t, TaskCanceled.Terminal())
}

func TestFirstTextSkipsDataParts(t *testing.T) {
	msg := &TaskMessage{
		Role: "user",
		Parts: []*MessagePart{
			NewDataPart(map[string]any{"symbol": "MSFT"}),
			NewTextPart("GOOGL"),
			NewTextPart("second"),
		},
	}
	text, ok := msg.FirstText()
	require.True(t, ok)
	assert.Equal(t, "GOOGL", text)
}

func TestFirstTextEmptyMessage(t *testing.T) {
	_, ok := (&TaskMessage{Role: "user"}).FirstText()
	assert.False(t, ok)

	var nilMsg *TaskMessage
	_, ok = nilMsg.FirstText()
	assert.False(t, ok)
}

func TestErrorArtifactRoundTrip(t *testing.T) {
	art := NewErrorArtifact("ticker symbol not provided")
	require.Equal(t, ErrorArtifactName, art.Name)

	msg, ok := art.ErrorMessage()
	require.True(t, ok)
	assert.Equal(t, "ticker symbol not provided", msg)
}

func TestErrorMessageRejectsOtherArtifacts(t *testing.T) {
	art := &Artifact{
		Name:  "quote_data",
		Parts: []*MessagePart{NewDataPart(map[string]any{"price": 100.0})},
	}
	_, ok := art.ErrorMessage()
	assert.False(t, ok)
}

func TestDataMap(t *testing.T) {
	part := NewDataPart(map[string]any{"price": 100.5, "symbol": "ABC"})
	m, ok := part.DataMap()
	require.True(t, ok)
	assert.Equal(t, "ABC", m["symbol"])
	assert.InDelta(t, 100.5, m["price"], 1e-9)

	_, ok = NewTextPart("hi").DataMap()
	assert.False(t, ok)
}

func TestAgentCardJSONShape(t *testing.T) {
	card := &AgentCard{
		Name:         "QuoteAgent",
		URL:          "http://127.0.0.1:8001/a2a",
		Capabilities: Capabilities{Streaming: false},
		Skills:       []*Skill{{ID: "get_quote", Name: "Get Quote"}},
	}
	raw, err := json.Marshal(card)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "QuoteAgent", doc["name"])
	assert.Contains(t, doc, "capabilities")
	assert.Contains(t, doc, "skills")
}
