package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/prompts"
	"github.com/moibraahim/gymnation-task/internal/tools"
)

func TestBookingConversationScenario(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("call_1", tools.CreateBooking, bookingArgs())}},
		{Content: "You're booked for personal training at 3pm."},
	}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, CreateInput{InitialMessage: "Hello", SessionID: "web-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.MessageCount != 1 || len(conv.Messages) != 1 || conv.Messages[0].Role != models.RoleUser {
		t.Fatalf("expected the greeting as the only message, got %+v", conv.Messages)
	}
	if len(model.Requests()) != 0 {
		t.Fatal("creating a conversation must not call the model")
	}

	outcome, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "Book a session for 3pm", UseTools: true}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	roles := []models.Role{models.RoleUser, models.RoleSystem, models.RoleAssistant}
	if len(outcome.NewMessages) != len(roles) {
		t.Fatalf("expected %d new messages, got %d", len(roles), len(outcome.NewMessages))
	}
	for i, role := range roles {
		if outcome.NewMessages[i].Role != role {
			t.Fatalf("new message %d: expected %s, got %s", i, role, outcome.NewMessages[i].Role)
		}
	}
	if !strings.Contains(outcome.NewMessages[1].Content, "[Booking Created Successfully]") {
		t.Fatalf("unexpected tool summary: %s", outcome.NewMessages[1].Content)
	}
	if len(outcome.Messages) != 4 {
		t.Fatalf("expected 4 messages in the conversation, got %d", len(outcome.Messages))
	}
	if f.bookings.Len() != 1 {
		t.Fatalf("expected exactly one booking, got %d", f.bookings.Len())
	}

	history := model.Requests()[0].Messages
	if len(history) != 2 || history[0].Content != "Hello" || history[1].Content != "Book a session for 3pm" {
		t.Fatalf("model saw unexpected history: %+v", history)
	}

	got, err := f.service.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i := 1; i < len(got.Messages); i++ {
		if !got.Messages[i].CreatedAt.After(got.Messages[i-1].CreatedAt) {
			t.Fatalf("messages out of order at %d", i)
		}
	}
}

func TestSendMessageKeepsUserMessageOnFailure(t *testing.T) {
	model := &scriptedModel{err: models.ErrModelUnavailable}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	outcome, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "Hello?"}, nil)
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
	if outcome == nil || outcome.UserMessage == nil || outcome.UserMessage.Content != "Hello?" {
		t.Fatalf("expected persisted user message in outcome, got %+v", outcome)
	}

	got, err := f.service.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != models.RoleUser {
		t.Fatalf("expected only the user message, got %+v", got.Messages)
	}
}

func TestSendMessageToolLoopPersistsNoReply(t *testing.T) {
	call := llm.ToolCall{ID: "c", Name: tools.GetBooking, Arguments: map[string]any{}}
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{call}},
		{ToolCalls: []llm.ToolCall{call}},
		{ToolCalls: []llm.ToolCall{call}},
	}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "loop", UseTools: true}, nil); !errors.Is(err, models.ErrToolLoopExceeded) {
		t.Fatalf("expected tool loop error, got %v", err)
	}

	got, err := f.service.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected only the user message, got %d", len(got.Messages))
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, nil)
	ctx := context.Background()

	if _, err := f.service.SendMessage(ctx, "00000000-0000-0000-0000-000000000000", SendInput{Content: "hi"}, nil); !errors.Is(err, models.ErrConversationNotFound) {
		t.Fatalf("expected conversation not found, got %v", err)
	}

	conv, err := f.service.CreateConversation(ctx, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "   "}, nil); !errors.Is(err, models.ErrInvalidArguments) {
		t.Fatalf("expected invalid arguments for blank content, got %v", err)
	}
}

func TestSendMessageRejectsUnknownPromptTypeBeforePersisting(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{{Content: "unused"}}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	outcome, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "hi", PromptType: "chatty"}, nil)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if outcome != nil {
		t.Fatalf("expected no outcome for a rejected request, got %+v", outcome)
	}
	if n := len(model.Requests()); n != 0 {
		t.Fatalf("expected no model call, got %d", n)
	}

	got, err := f.service.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Fatalf("expected nothing persisted, got %+v", got.Messages)
	}
}

func TestSendMessageSurvivesCallerCancellation(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{{Content: "still here"}}}
	f := newFixture(t, model, nil)

	conv, err := f.service.CreateConversation(context.Background(), CreateInput{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.service.SendMessage(ctx, conv.ID, SendInput{Content: "hi"}, nil)
	if err != nil {
		t.Fatalf("send with cancelled caller: %v", err)
	}
	if len(outcome.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(outcome.Messages))
	}
}

func TestSystemPrompt(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, nil)

	got, err := f.service.SystemPrompt("")
	if err != nil {
		t.Fatalf("system prompt: %v", err)
	}
	if got.PromptType != prompts.TypeDefault || got.Prompt == "" {
		t.Fatalf("unexpected prompt: %+v", got)
	}
	if len(got.AvailableTypes) != 3 {
		t.Fatalf("expected 3 prompt types, got %v", got.AvailableTypes)
	}

	if _, err := f.service.SystemPrompt("detailled"); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListAndDeleteConversations(t *testing.T) {
	f := newFixture(t, &scriptedModel{}, nil)
	ctx := context.Background()

	first, err := f.service.CreateConversation(ctx, CreateInput{Title: "First", SessionID: "s1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.CreateConversation(ctx, CreateInput{Title: "Other", SessionID: "s2"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := f.service.ListConversations(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := f.service.DeleteConversation(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.service.GetConversation(ctx, first.ID); !errors.Is(err, models.ErrConversationNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
