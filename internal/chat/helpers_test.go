package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/moibraahim/gymnation-task/internal/booking"
	"github.com/moibraahim/gymnation-task/internal/db"
	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/prompts"
	"github.com/moibraahim/gymnation-task/internal/tools"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

type stubRetriever struct {
	passages []models.RetrievedPassage
	err      error
	queries  []string
}

func (r *stubRetriever) Search(_ context.Context, query string, _ int) ([]models.RetrievedPassage, error) {
	r.queries = append(r.queries, query)
	return r.passages, r.err
}

func toolCall(id, name string, args map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: args}
}

func bookingArgs() map[string]any {
	return map[string]any{
		"service_type":   "personal training",
		"date":           "2026-10-20",
		"time":           "15:00",
		"customer_name":  "Sam Lee",
		"customer_email": "sam@example.com",
	}
}

type fixture struct {
	model    *scriptedModel
	bookings *booking.MemoryStore
	store    *db.SQLite
	orch     *Orchestrator
	service  *Service
}

func newFixture(t *testing.T, model *scriptedModel, retriever Retriever) *fixture {
	t.Helper()

	store, err := db.NewSQLite(context.Background(), utils.SQLiteConfig{Path: filepath.Join(t.TempDir(), "chat.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bookings := booking.NewMemoryStore()
	builder := prompts.NewBuilder(0)
	orch := NewOrchestrator(model, builder, retriever, tools.NewDispatcher(bookings, nil), OrchestratorConfig{MaxToolRounds: 2}, nil)

	return &fixture{
		model:    model,
		bookings: bookings,
		store:    store,
		orch:     orch,
		service:  NewService(store, orch, builder, 0, nil),
	}
}
