package bridge

// Client message types, dispatched on by the downstream relay loop.
const (
	// ClientAudio carries a base64-encoded audio chunk in Data.
	ClientAudio = "audio"
	// ClientText carries a complete text turn in Data.
	ClientText = "text"
	// ClientEndOfTurn marks the end of the user's turn. Turn boundaries are
	// inferred upstream from content alone, so it triggers no action.
	ClientEndOfTurn = "end_of_turn"
	// ClientToggleMock toggles the session's tool-mocking flag to Value.
	ClientToggleMock = "toggle_mock"
)

// Server message types emitted to the client by the upstream relay loop.
const (
	// ServerAudio carries a base64-encoded audio chunk in Data.
	ServerAudio = "audio"
	// ServerTurnComplete signals the end of the agent's turn.
	ServerTurnComplete = "turn_complete"
	// ServerInterrupted signals the agent's generation was cut off.
	ServerInterrupted = "interrupted"
)

type (
	// ClientMessage is one inbound JSON message from the client connection.
	ClientMessage struct {
		// Type selects the message kind.
		Type string `json:"type"`
		// Data is the payload: base64-encoded audio for audio messages,
		// plain text for text messages.
		Data string `json:"data,omitempty"`
		// Value is the payload of toggle_mock messages.
		Value bool `json:"value,omitempty"`
	}

	// ServerMessage is one outbound JSON message to the client connection.
	ServerMessage struct {
		// Type selects the message kind.
		Type string `json:"type"`
		// Data is the base64 payload of audio messages.
		Data string `json:"data,omitempty"`
	}
)
