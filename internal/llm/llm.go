// Package llm talks to chat-completion models. Providers differ in wire
// format only; callers see one Client interface and one error,
// models.ErrModelUnavailable.
package llm

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the history sent to a model.
// Assistant messages may carry ToolCalls; tool messages answer one call by ToolCallID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
	IsError    bool
}

// ToolCall is a model request to run a declared tool.
// Arguments is nil when RawArguments could not be decoded as a JSON object.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]any
	RawArguments string
}

type Request struct {
	System   string
	Messages []Message
	Tools    []mcp.Tool
}

// Response is either a final message or a set of tool calls.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options are sampling settings shared by all providers.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// ParseArguments decodes a JSON object of tool arguments.
func ParseArguments(raw string) (map[string]any, bool) {
	if raw == "" {
		return map[string]any{}, true
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return nil, false
	}
	return args, true
}

func newToolCall(id, name, raw string) ToolCall {
	args, _ := ParseArguments(raw)
	return ToolCall{ID: id, Name: name, Arguments: args, RawArguments: raw}
}

func encodeArguments(call ToolCall) string {
	if call.Arguments == nil {
		if call.RawArguments != "" {
			return call.RawArguments
		}
		return "{}"
	}
	data, err := json.Marshal(call.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}
