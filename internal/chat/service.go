package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/tools"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

const DefaultTurnTimeout = 300 * time.Second

// ConversationStore persists conversations and their ordered messages.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title, sessionID, firstMessage string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	Ping(ctx context.Context) error
}

// TemplateSource exposes the prompt templates for inspection.
type TemplateSource interface {
	Template(name string) (string, error)
	Names() []string
}

type Service struct {
	store        ConversationStore
	orchestrator *Orchestrator
	templates    TemplateSource
	turnTimeout  time.Duration
	logger       *zap.Logger
}

func NewService(store ConversationStore, orchestrator *Orchestrator, templates TemplateSource, turnTimeout time.Duration, logger *zap.Logger) *Service {
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	return &Service{
		store:        store,
		orchestrator: orchestrator,
		templates:    templates,
		turnTimeout:  turnTimeout,
		logger:       utils.OrNop(logger).With(zap.String("component", "chat_service")),
	}
}

type CreateInput struct {
	Title          string
	InitialMessage string
	SessionID      string
}

// CreateConversation stores a new conversation and, when given, its first
// user message. The model is not called.
func (s *Service) CreateConversation(ctx context.Context, in CreateInput) (*models.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, strings.TrimSpace(in.Title), strings.TrimSpace(in.SessionID), strings.TrimSpace(in.InitialMessage))
	if err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID), zap.Int("messages", conv.MessageCount))
	return conv, nil
}

type SendInput struct {
	Content    string
	UseTools   bool
	UseRAG     bool
	PromptType string
}

// TurnOutcome holds what a turn added and the conversation after it.
// On failure only UserMessage is set.
type TurnOutcome struct {
	UserMessage *models.Message
	NewMessages []models.Message
	Messages    []models.Message
	ToolResults []tools.Result
	PromptType  string
}

// SendMessage commits the user message, runs a turn and commits the turn's
// output. The turn is detached from ctx cancellation and bounded by the
// service's turn timeout.
func (s *Service) SendMessage(ctx context.Context, conversationID string, in SendInput, onEvent func(Event)) (*TurnOutcome, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", models.ErrInvalidArguments)
	}
	if name := strings.TrimSpace(in.PromptType); name != "" && s.templates != nil {
		if _, err := s.templates.Template(name); err != nil {
			return nil, err
		}
	}

	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.turnTimeout)
	defer cancel()

	history, err := s.store.ListMessages(turnCtx, conversationID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.store.AppendMessage(turnCtx, conversationID, models.RoleUser, content)
	if err != nil {
		return nil, err
	}

	outcome := &TurnOutcome{UserMessage: userMsg, NewMessages: []models.Message{*userMsg}}
	logger := s.logger.With(zap.String("conversation_id", conversationID))

	result, err := s.orchestrator.Run(turnCtx, TurnRequest{
		History:    history,
		Content:    content,
		UseTools:   in.UseTools,
		UseRAG:     in.UseRAG,
		PromptType: in.PromptType,
	}, onEvent)
	if err != nil {
		logger.Warn("turn failed", zap.Error(err))
		return outcome, err
	}
	outcome.ToolResults = result.ToolResults
	outcome.PromptType = result.PromptType

	if len(result.ToolResults) > 0 {
		summary, err := s.store.AppendMessage(turnCtx, conversationID, models.RoleSystem, tools.Summarize(result.ToolResults))
		if err != nil {
			return outcome, fmt.Errorf("persist tool summary: %w", err)
		}
		outcome.NewMessages = append(outcome.NewMessages, *summary)
	}

	reply, err := s.store.AppendMessage(turnCtx, conversationID, models.RoleAssistant, result.Reply)
	if err != nil {
		return outcome, fmt.Errorf("persist reply: %w", err)
	}
	outcome.NewMessages = append(outcome.NewMessages, *reply)

	messages, err := s.store.ListMessages(turnCtx, conversationID)
	if err != nil {
		return outcome, err
	}
	outcome.Messages = messages

	logger.Info("turn committed",
		zap.String("prompt_type", result.PromptType),
		zap.Int("tool_calls", len(result.ToolResults)),
		zap.Int("rounds", result.Rounds),
	)
	return outcome, nil
}

// GetConversation returns the conversation with its messages in order.
func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages
	conv.MessageCount = len(messages)
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, strings.TrimSpace(sessionID), limit)
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

type SystemPrompt struct {
	PromptType     string   `json:"prompt_type"`
	Prompt         string   `json:"prompt"`
	AvailableTypes []string `json:"available_types"`
}

// SystemPrompt returns a template's raw text; an empty name selects the
// configured default.
func (s *Service) SystemPrompt(name string) (*SystemPrompt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.orchestrator.cfg.DefaultPromptType
	}
	text, err := s.templates.Template(name)
	if err != nil {
		return nil, err
	}
	return &SystemPrompt{PromptType: name, Prompt: text, AvailableTypes: s.templates.Names()}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
