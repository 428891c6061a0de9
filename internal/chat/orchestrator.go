// Package chat runs assistant turns and keeps conversations in order.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/prompts"
	"github.com/moibraahim/gymnation-task/internal/tools"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

const DefaultMaxToolRounds = 5

type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.RetrievedPassage, error)
}

type PromptBuilder interface {
	Build(name string, passages []models.RetrievedPassage) (string, error)
}

type ToolDispatcher interface {
	Declarations() []mcp.Tool
	Dispatch(ctx context.Context, call llm.ToolCall) tools.Result
}

type OrchestratorConfig struct {
	MaxToolRounds     int
	DefaultPromptType string
	TopK              int
}

// Orchestrator drives a single turn from the user message to the final reply.
type Orchestrator struct {
	model      llm.Client
	prompts    PromptBuilder
	retriever  Retriever
	dispatcher ToolDispatcher
	cfg        OrchestratorConfig
	logger     *zap.Logger
}

// NewOrchestrator wires a turn runner. retriever and dispatcher may be nil,
// which disables retrieval and tools respectively.
func NewOrchestrator(model llm.Client, builder PromptBuilder, retriever Retriever, dispatcher ToolDispatcher, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if strings.TrimSpace(cfg.DefaultPromptType) == "" {
		cfg.DefaultPromptType = prompts.TypeDefault
	}
	return &Orchestrator{
		model:      model,
		prompts:    builder,
		retriever:  retriever,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     utils.OrNop(logger).With(zap.String("component", "orchestrator")),
	}
}

type TurnRequest struct {
	History    []models.Message
	Content    string
	UseTools   bool
	UseRAG     bool
	PromptType string
}

type TurnResult struct {
	Reply       string
	PromptType  string
	Passages    []models.RetrievedPassage
	ToolResults []tools.Result
	Rounds      int
}

type turnState int

const (
	stateRetrieve turnState = iota
	stateBuildPrompt
	stateCallModel
	stateExecuteTools
	stateFinal
)

func (s turnState) String() string {
	switch s {
	case stateRetrieve:
		return "retrieve"
	case stateBuildPrompt:
		return "build_prompt"
	case stateCallModel:
		return "call_model"
	case stateExecuteTools:
		return "execute_tools"
	case stateFinal:
		return "final"
	}
	return "unknown"
}

// PromptTypeFor picks the template a turn uses.
func (o *Orchestrator) PromptTypeFor(req TurnRequest) string {
	if name := strings.TrimSpace(req.PromptType); name != "" {
		return name
	}
	if !req.UseTools && !req.UseRAG {
		return prompts.TypeMinimal
	}
	return o.cfg.DefaultPromptType
}

// Run executes one turn. onEvent may be nil. Retrieval failures are logged
// and skipped; tool failures are returned to the model. Only model failures,
// an unknown prompt type and an exhausted tool budget end the turn early.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest, onEvent func(Event)) (*TurnResult, error) {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	result := &TurnResult{PromptType: o.PromptTypeFor(req)}
	useTools := req.UseTools && o.dispatcher != nil

	var (
		system   string
		messages []llm.Message
		pending  *llm.Response
		declared []mcp.Tool
	)

	state := stateRetrieve
	for {
		switch state {
		case stateRetrieve:
			if req.UseRAG && o.retriever != nil {
				passages, err := o.retriever.Search(ctx, req.Content, o.cfg.TopK)
				if err != nil {
					o.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
				} else {
					result.Passages = passages
				}
				emit(Event{Type: EventRetrieval, Passages: len(result.Passages)})
			}
			state = stateBuildPrompt

		case stateBuildPrompt:
			text, err := o.prompts.Build(result.PromptType, result.Passages)
			if err != nil {
				return nil, err
			}
			system = text
			messages = historyMessages(req.History)
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Content})
			if useTools {
				declared = o.dispatcher.Declarations()
			}
			state = stateCallModel

		case stateCallModel:
			resp, err := o.model.Complete(ctx, llm.Request{System: system, Messages: messages, Tools: declared})
			if err != nil {
				return nil, err
			}
			if !resp.HasToolCalls() {
				result.Reply = resp.Content
				state = stateFinal
				continue
			}
			if !useTools {
				return nil, fmt.Errorf("%w: model requested tools that were not offered", models.ErrModelUnavailable)
			}
			if result.Rounds >= o.cfg.MaxToolRounds {
				o.logger.Warn("tool round budget exhausted", zap.Int("rounds", result.Rounds))
				return nil, fmt.Errorf("%w: still requesting tools after %d rounds", models.ErrToolLoopExceeded, result.Rounds)
			}
			pending = resp
			state = stateExecuteTools

		case stateExecuteTools:
			result.Rounds++
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   pending.Content,
				ToolCalls: pending.ToolCalls,
			})
			for _, call := range pending.ToolCalls {
				emit(Event{Type: EventToolCall, Tool: call.Name, CallID: call.ID, Arguments: call.Arguments})

				res := o.dispatcher.Dispatch(ctx, call)
				result.ToolResults = append(result.ToolResults, res)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    res.Content(),
					ToolCallID: call.ID,
					Name:       call.Name,
					IsError:    res.IsError(),
				})

				ev := Event{Type: EventToolResult, Tool: call.Name, CallID: call.ID, Result: res.Payload}
				if res.Err != nil {
					ev.Error = res.Err.Error()
				}
				emit(ev)
			}
			pending = nil
			state = stateCallModel

		case stateFinal:
			emit(Event{Type: EventFinal, Content: result.Reply})
			o.logger.Debug("turn complete",
				zap.String("prompt_type", result.PromptType),
				zap.Int("rounds", result.Rounds),
				zap.Int("passages", len(result.Passages)),
			)
			return result, nil

		default:
			return nil, errors.New("chat: invalid turn state " + state.String())
		}
	}
}

func historyMessages(history []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	for _, msg := range history {
		var role llm.Role
		switch msg.Role {
		case models.RoleUser:
			role = llm.RoleUser
		case models.RoleAssistant:
			role = llm.RoleAssistant
		case models.RoleSystem:
			role = llm.RoleSystem
		default:
			continue
		}
		out = append(out, llm.Message{Role: role, Content: msg.Content})
	}
	return out
}
