package chat

type EventType string

const (
	EventRetrieval  EventType = "retrieval"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
	EventMessages   EventType = "messages"
)

// Event reports turn progress to streaming callers.
type Event struct {
	Type      EventType      `json:"type"`
	Tool      string         `json:"tool,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Passages  int            `json:"passages,omitempty"`
	Content   string         `json:"content,omitempty"`
	Error     string         `json:"error,omitempty"`
}
