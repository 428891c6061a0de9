package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
)

const ollamaDefaultURL = "http://localhost:11434"

type OllamaClient struct {
	client *api.Client
	model  string
	opts   Options
}

func NewOllamaClient(baseURL, model string, opts Options, httpClient *http.Client) (*OllamaClient, error) {
	if model == "" {
		return nil, errors.New("ollama: model is required")
	}
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaClient{
		client: api.NewClient(parsed, httpClient),
		model:  model,
		opts:   opts,
	}, nil
}

func (c *OllamaClient) Complete(ctx context.Context, req Request) (*Response, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: ollamaMessages(req.System, req.Messages),
		Tools:    ollamaTools(req.Tools),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if c.opts.Temperature > 0 {
		chatReq.Options["temperature"] = c.opts.Temperature
	}
	if c.opts.MaxTokens > 0 {
		chatReq.Options["num_predict"] = c.opts.MaxTokens
	}

	var content strings.Builder
	var calls []api.ToolCall
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		calls = append(calls, resp.Message.ToolCalls...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: chat: %w", err)
	}

	resp := &Response{Content: content.String()}
	for _, call := range calls {
		// Ollama does not identify calls, so ids are minted here.
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
			Name:      call.Function.Name,
			Arguments: map[string]any(call.Function.Arguments),
		})
	}
	return resp, nil
}

func ollamaMessages(system string, history []Message) []api.Message {
	result := make([]api.Message, 0, len(history)+1)
	if system != "" {
		result = append(result, api.Message{Role: string(RoleSystem), Content: system})
	}

	for _, msg := range history {
		out := api.Message{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			args := call.Arguments
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{Name: call.Name, Arguments: args},
			})
		}
		result = append(result, out)
	}
	return result
}
