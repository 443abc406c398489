// Package types defines the A2A protocol data types used for task exchange
// and agent discovery. Field names use camelCase JSON tags to conform to the
// A2A protocol specification.
//
//nolint:tagliatelle // A2A protocol specification requires camelCase JSON field names
package types

import (
	"encoding/json"
	"time"
)

// TaskState is the canonical lifecycle state of an A2A task. Valid
// transitions are submitted → working → {completed | failed}; completed,
// failed, and canceled are terminal.
type TaskState string

const (
	// TaskSubmitted indicates the task has been received but not started.
	TaskSubmitted TaskState = "submitted"
	// TaskWorking indicates the task is actively executing.
	TaskWorking TaskState = "working"
	// TaskCompleted indicates the task finished successfully.
	TaskCompleted TaskState = "completed"
	// TaskFailed indicates the task failed permanently.
	TaskFailed TaskState = "failed"
	// TaskCanceled indicates the task was canceled externally.
	TaskCanceled TaskState = "canceled"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCanceled
}

// ErrorArtifactName is the conventional name of the artifact that carries
// error details on a failed task. Its single data part holds an object with
// an "error" key.
const ErrorArtifactName = "error_details"

// SendTaskPayload is the request payload for tasks/send. It carries the
// caller-generated task identifier, the correlating session identifier, and
// the initial message.
type SendTaskPayload struct {
	// ID is the unique identifier for the task, generated by the caller.
	ID string `json:"id"`
	// SessionID correlates the task with the calling session.
	SessionID string `json:"sessionId,omitempty"`
	// Message is the initial task message.
	Message *TaskMessage `json:"message"`
	// Metadata holds optional task-level metadata supplied by the caller.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GetTaskPayload is the request payload for tasks/get.
type GetTaskPayload struct {
	// ID is the identifier of the task to retrieve.
	ID string `json:"id"`
}

// Task represents an A2A task: one delegated unit of work tracked through an
// explicit status lifecycle with attached output artifacts.
type Task struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`
	// SessionID correlates the task with the session that created it.
	SessionID string `json:"sessionId,omitempty"`
	// Status is the most recent task status snapshot.
	Status TaskStatus `json:"status"`
	// Artifacts are the ordered task output artifacts.
	Artifacts []*Artifact `json:"artifacts,omitempty"`
	// Metadata holds implementation-defined task metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskStatus represents the status of an A2A task at a point in time.
type TaskStatus struct {
	// State is the canonical task state.
	State TaskState `json:"state"`
	// Message is an optional human-readable status message.
	Message string `json:"message,omitempty"`
	// Timestamp is an optional RFC3339 timestamp for the status update.
	Timestamp string `json:"timestamp,omitempty"`
}

// NewStatus builds a status snapshot for the given state stamped with the
// current UTC time.
func NewStatus(state TaskState, message string) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// TaskMessage represents a single message in an A2A task exchange.
type TaskMessage struct {
	// Role is the message role ("user", "agent", or "system").
	Role string `json:"role"`
	// Parts are the ordered content parts that make up the message.
	Parts []*MessagePart `json:"parts"`
}

// FirstText returns the first non-empty text part of the message, if any.
func (m *TaskMessage) FirstText() (string, bool) {
	if m == nil {
		return "", false
	}
	for _, p := range m.Parts {
		if p != nil && p.Type == PartText && p.Text != "" {
			return p.Text, true
		}
	}
	return "", false
}

// Part type identifiers.
const (
	// PartText identifies a textual message part.
	PartText = "text"
	// PartData identifies a structured-data message part.
	PartData = "data"
)

// MessagePart represents a part of a message or artifact (text or structured
// data).
type MessagePart struct {
	// Type identifies the part kind: "text" or "data".
	Type string `json:"type"`
	// Text is the textual content when Type == "text".
	Text string `json:"text,omitempty"`
	// Data is the structured payload when Type == "data".
	Data json.RawMessage `json:"data,omitempty"`
}

// NewTextPart builds a text message part.
func NewTextPart(text string) *MessagePart {
	return &MessagePart{Type: PartText, Text: text}
}

// NewDataPart builds a data message part from any JSON-serializable value.
// Marshaling errors surface as an empty data payload; callers that need
// strict behavior should marshal themselves.
func NewDataPart(v any) *MessagePart {
	data, _ := json.Marshal(v)
	return &MessagePart{Type: PartData, Data: data}
}

// DataMap decodes the part's data payload into a generic map. It returns
// false when the part is not a data part or the payload is not a JSON object.
func (p *MessagePart) DataMap() (map[string]any, bool) {
	if p == nil || p.Type != PartData || len(p.Data) == 0 {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(p.Data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Artifact represents a named output artifact attached to a task.
type Artifact struct {
	// Name is the artifact name. Failed tasks carry an artifact named
	// ErrorArtifactName.
	Name string `json:"name"`
	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`
	// Parts are the ordered content parts that make up the artifact.
	Parts []*MessagePart `json:"parts"`
}

// NewErrorArtifact builds the conventional error artifact for a failed task.
func NewErrorArtifact(message string) *Artifact {
	return &Artifact{
		Name:  ErrorArtifactName,
		Parts: []*MessagePart{NewDataPart(map[string]any{"error": message})},
	}
}

// ErrorMessage extracts the error message from the artifact's data part. It
// returns false when the artifact does not follow the error convention.
func (a *Artifact) ErrorMessage() (string, bool) {
	if a == nil || a.Name != ErrorArtifactName {
		return "", false
	}
	for _, p := range a.Parts {
		if m, ok := p.DataMap(); ok {
			if msg, ok := m["error"].(string); ok {
				return msg, true
			}
		}
	}
	return "", false
}

// AgentCard represents the A2A agent discovery document served at
// /.well-known/agent.json.
type AgentCard struct {
	// Name is the unique human-readable agent name.
	Name string `json:"name"`
	// Description is an optional human-readable description of the agent.
	Description string `json:"description,omitempty"`
	// URL is the A2A invocation endpoint for the agent.
	URL string `json:"url"`
	// Version is the agent implementation version.
	Version string `json:"version,omitempty"`
	// Capabilities captures protocol-level capability flags.
	Capabilities Capabilities `json:"capabilities"`
	// DefaultInputModes lists the default supported input content modes.
	DefaultInputModes []string `json:"defaultInputModes,omitempty"`
	// DefaultOutputModes lists the default supported output content modes.
	DefaultOutputModes []string `json:"defaultOutputModes,omitempty"`
	// Skills enumerates the skills exposed by the agent.
	Skills []*Skill `json:"skills"`
}

// Capabilities captures optional A2A protocol capabilities.
type Capabilities struct {
	// Streaming reports whether the agent supports tasks/sendSubscribe.
	Streaming bool `json:"streaming"`
}

// Skill represents an A2A skill within an AgentCard.
type Skill struct {
	// ID is the unique identifier for the skill within the agent.
	ID string `json:"id"`
	// Name is the human-readable skill name.
	Name string `json:"name"`
	// Description is an optional human-readable description of the skill.
	Description string `json:"description,omitempty"`
	// Tags are optional labels describing the skill.
	Tags []string `json:"tags,omitempty"`
	// Examples are optional example utterances for the skill.
	Examples []string `json:"examples,omitempty"`
	// InputModes are the supported input content modes for the skill.
	InputModes []string `json:"inputModes,omitempty"`
	// OutputModes are the supported output content modes for the skill.
	OutputModes []string `json:"outputModes,omitempty"`
}
