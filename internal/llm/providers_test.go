package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func bookingTool() mcp.Tool {
	return mcp.NewTool("get_booking",
		mcp.WithDescription("Look up a booking"),
		mcp.WithString("booking_id", mcp.Required(), mcp.Description("Booking identifier")),
	)
}

func captureServer(t *testing.T, response string, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if captured != nil {
			if err := json.Unmarshal(body, captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIClientParsesToolCalls(t *testing.T) {
	var request map[string]any
	server := captureServer(t, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": null,
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "get_booking", "arguments": "{\"booking_id\":\"BK12345678\"}"}
				}]
			}
		}]
	}`, &request)

	client, err := NewOpenAIClient("sk-test", server.URL+"/", "gpt-4o-mini", Options{Temperature: 0.7, MaxTokens: 1000})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		System:   "be helpful",
		Messages: []Message{{Role: RoleUser, Content: "where is my booking?"}},
		Tools:    []mcp.Tool{bookingTool()},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if !resp.HasToolCalls() || resp.ToolCalls[0].ID != "call_1" || resp.ToolCalls[0].Name != "get_booking" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Arguments["booking_id"] != "BK12345678" {
		t.Fatalf("unexpected arguments %+v", resp.ToolCalls[0].Arguments)
	}

	messages, _ := request["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be helpful" {
		t.Fatalf("expected system prompt first, got %v", first)
	}
	tools, _ := request["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("expected one declared tool, got %d", len(tools))
	}
}

func TestOpenAIMessagesCarryToolExchange(t *testing.T) {
	var request map[string]any
	server := captureServer(t, `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "All booked."}}]
	}`, &request)

	client, err := NewOpenAIClient("sk-test", server.URL+"/", "gpt-4o-mini", Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleUser, Content: "book me in"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_9", Name: "get_booking", Arguments: map[string]any{"booking_id": "BK1"}}}},
			{Role: RoleTool, ToolCallID: "call_9", Name: "get_booking", Content: `{"success":true}`},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "All booked." || resp.HasToolCalls() {
		t.Fatalf("unexpected response %+v", resp)
	}

	messages, _ := request["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	tool, _ := messages[2].(map[string]any)
	if tool["role"] != "tool" || tool["tool_call_id"] != "call_9" {
		t.Fatalf("unexpected tool message %v", tool)
	}
}

func TestAnthropicClientParsesToolUse(t *testing.T) {
	var request map[string]any
	server := captureServer(t, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_booking", "input": {"booking_id": "BK1"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, &request)

	client, err := NewAnthropicClient("sk-ant", server.URL, "claude-sonnet-4-5", Options{MaxTokens: 500})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		System: "be helpful",
		Messages: []Message{
			{Role: RoleSystem, Content: "[Booking Created Successfully]"},
			{Role: RoleUser, Content: "check BK1"},
		},
		Tools: []mcp.Tool{bookingTool()},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if resp.Content != "Let me check." {
		t.Fatalf("unexpected text %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" || resp.ToolCalls[0].Arguments["booking_id"] != "BK1" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}

	system, _ := request["system"].([]any)
	if len(system) != 2 {
		t.Fatalf("expected history system entries merged into system blocks, got %v", request["system"])
	}
	messages, _ := request["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected one user message, got %d", len(messages))
	}
}

func TestAnthropicGroupsToolResults(t *testing.T) {
	messages, _ := anthropicMessages("", []Message{
		{Role: RoleUser, Content: "do two things"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "get_booking"}, {ID: "b", Name: "get_booking"}}},
		{Role: RoleTool, ToolCallID: "a", Content: "{}"},
		{Role: RoleTool, ToolCallID: "b", Content: "{}", IsError: true},
	})

	if len(messages) != 3 {
		t.Fatalf("expected user, assistant, grouped results; got %d messages", len(messages))
	}
	if len(messages[2].Content) != 2 {
		t.Fatalf("expected both results in one turn, got %d blocks", len(messages[2].Content))
	}
}

func TestOllamaClientMintsCallIDs(t *testing.T) {
	var request map[string]any
	server := captureServer(t, `{"model":"llama3.1","created_at":"2025-03-14T15:00:00Z","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_booking","arguments":{"booking_id":"BK1"}}}]},"done":true}`+"\n", &request)

	client, err := NewOllamaClient(server.URL, "llama3.1", Options{Temperature: 0.2}, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Complete(context.Background(), Request{
		System:   "be helpful",
		Messages: []Message{{Role: RoleUser, Content: "check BK1"}},
		Tools:    []mcp.Tool{bookingTool()},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID == "" {
		t.Fatalf("expected a tool call with an id, got %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Arguments["booking_id"] != "BK1" {
		t.Fatalf("unexpected arguments %+v", resp.ToolCalls[0].Arguments)
	}
	if request["stream"] != false {
		t.Fatalf("expected non-streaming request, got %v", request["stream"])
	}
}

func TestOllamaToolsConversion(t *testing.T) {
	tool := mcp.NewTool("update_booking",
		mcp.WithString("status", mcp.Enum("confirmed", "cancelled")),
	)
	converted := ollamaTools([]mcp.Tool{tool})
	if len(converted) != 1 {
		t.Fatalf("expected one tool")
	}
	prop := converted[0].Function.Parameters.Properties["status"]
	if len(prop.Enum) != 2 {
		t.Fatalf("expected enum values carried over, got %v", prop.Enum)
	}
}
