package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/moibraahim/gymnation-task/internal/models"
)

type conversationStore interface {
	CreateConversation(ctx context.Context, title, sessionID, firstMessage string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	Ping(ctx context.Context) error
}

func runStoreContract(t *testing.T, store conversationStore) {
	t.Helper()
	ctx := context.Background()
	session := "session-" + uuid.NewString()

	t.Run("create with first message", func(t *testing.T) {
		conv, err := store.CreateConversation(ctx, "", session, "Hello")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if conv.Title != "New Conversation" {
			t.Fatalf("expected default title, got %q", conv.Title)
		}
		if conv.MessageCount != 1 || len(conv.Messages) != 1 {
			t.Fatalf("expected one message, got %d/%d", conv.MessageCount, len(conv.Messages))
		}

		got, err := store.GetConversation(ctx, conv.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.SessionID != session || got.MessageCount != 1 {
			t.Fatalf("unexpected conversation: %+v", got)
		}
	})

	t.Run("append keeps strict order", func(t *testing.T) {
		conv, err := store.CreateConversation(ctx, "Booking", session, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		roles := []models.Role{models.RoleUser, models.RoleSystem, models.RoleAssistant}
		for i, role := range roles {
			if _, err := store.AppendMessage(ctx, conv.ID, role, string(role)); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}

		messages, err := store.ListMessages(ctx, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != len(roles) {
			t.Fatalf("expected %d messages, got %d", len(roles), len(messages))
		}
		for i := range messages {
			if messages[i].Role != roles[i] {
				t.Fatalf("message %d: expected role %s, got %s", i, roles[i], messages[i].Role)
			}
			if i > 0 && !messages[i].CreatedAt.After(messages[i-1].CreatedAt) {
				t.Fatalf("message %d not after its predecessor", i)
			}
		}

		got, err := store.GetConversation(ctx, conv.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.UpdatedAt.Before(messages[len(messages)-1].CreatedAt) {
			t.Fatalf("updated_at %s lags last message %s", got.UpdatedAt, messages[len(messages)-1].CreatedAt)
		}
	})

	t.Run("concurrent appends stay ordered", func(t *testing.T) {
		conv, err := store.CreateConversation(ctx, "", session, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.AppendMessage(ctx, conv.ID, models.RoleUser, "hi"); err != nil {
					t.Errorf("append: %v", err)
				}
			}()
		}
		wg.Wait()

		messages, err := store.ListMessages(ctx, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != 8 {
			t.Fatalf("expected 8 messages, got %d", len(messages))
		}
		for i := 1; i < len(messages); i++ {
			if !messages[i].CreatedAt.After(messages[i-1].CreatedAt) {
				t.Fatalf("timestamps not strictly increasing at %d", i)
			}
		}
	})

	t.Run("list filters by session", func(t *testing.T) {
		other := "other-" + uuid.NewString()
		if _, err := store.CreateConversation(ctx, "elsewhere", other, ""); err != nil {
			t.Fatalf("create: %v", err)
		}

		list, err := store.ListConversations(ctx, session, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 conversations for session, got %d", len(list))
		}
		for i := 1; i < len(list); i++ {
			if list[i].UpdatedAt.After(list[i-1].UpdatedAt) {
				t.Fatalf("list not ordered by most recent activity")
			}
		}
	})

	t.Run("missing conversation", func(t *testing.T) {
		for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
			if _, err := store.GetConversation(ctx, id); !errors.Is(err, models.ErrConversationNotFound) {
				t.Fatalf("get %q: expected not found, got %v", id, err)
			}
			if _, err := store.AppendMessage(ctx, id, models.RoleUser, "x"); !errors.Is(err, models.ErrConversationNotFound) {
				t.Fatalf("append %q: expected not found, got %v", id, err)
			}
			if err := store.DeleteConversation(ctx, id); !errors.Is(err, models.ErrConversationNotFound) {
				t.Fatalf("delete %q: expected not found, got %v", id, err)
			}
		}
	})

	t.Run("delete removes messages", func(t *testing.T) {
		conv, err := store.CreateConversation(ctx, "", session, "bye")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := store.DeleteConversation(ctx, conv.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := store.GetConversation(ctx, conv.ID); !errors.Is(err, models.ErrConversationNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		messages, err := store.ListMessages(ctx, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(messages) != 0 {
			t.Fatalf("expected messages to be removed, got %d", len(messages))
		}
	})

	t.Run("rejects tool role", func(t *testing.T) {
		conv, err := store.CreateConversation(ctx, "", session, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := store.AppendMessage(ctx, conv.ID, models.Role("tool"), "x"); err == nil {
			t.Fatal("expected invalid role error")
		}
	})

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
