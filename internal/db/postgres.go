package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.BuildDSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

// SchemaStatements is the idempotent DDL for the conversation store.
var SchemaStatements = []string{
	strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS conversations (",
		"    id UUID PRIMARY KEY,",
		"    title TEXT NOT NULL DEFAULT 'New Conversation',",
		"    user_id TEXT,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
		"    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		")",
	}, "\n"),
	strings.Join([]string{
		"CREATE TABLE IF NOT EXISTS messages (",
		"    id UUID PRIMARY KEY,",
		"    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,",
		"    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),",
		"    content TEXT NOT NULL,",
		"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()",
		")",
	}, "\n"),
	"CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at)",
	"CREATE INDEX IF NOT EXISTS idx_conversations_user_updated ON conversations (user_id, updated_at DESC)",
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	for _, stmt := range SchemaStatements {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CreateConversation(ctx context.Context, title, sessionID, firstMessage string) (*models.Conversation, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     titleOrDefault(title),
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO conversations (id, title, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)",
		conv.ID, conv.Title, nullableString(sessionID), now)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("postgres: insert conversation: %w", err))
	}

	if firstMessage != "" {
		msg := models.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        firstMessage,
			CreatedAt:      now,
		}
		if err := insertMessage(ctx, tx, msg); err != nil {
			return nil, err
		}
		conv.Messages = []models.Message{msg}
		conv.MessageCount = 1
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit conversation: %w", err)
	}
	return conv, nil
}

func (p *Postgres) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if !validID(id) {
		return nil, notFound(id)
	}

	row := p.Pool.QueryRow(ctx, strings.Join([]string{
		"SELECT c.id::text, c.title, c.user_id, c.created_at, c.updated_at,",
		"       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)",
		"FROM conversations c WHERE c.id = $1",
	}, "\n"), id)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("postgres: get conversation: %w", err))
	}
	return conv, nil
}

func (p *Postgres) ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	rows, err := p.Pool.Query(ctx, strings.Join([]string{
		"SELECT c.id::text, c.title, c.user_id, c.created_at, c.updated_at, COUNT(m.id)",
		"FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id",
		"WHERE ($1::text = '' OR c.user_id = $1)",
		"GROUP BY c.id",
		"ORDER BY c.updated_at DESC",
		"LIMIT $2",
	}, "\n"), sessionID, limitOrDefault(limit))
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("postgres: list conversations: %w", err))
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list conversations: %w", err)
	}
	return conversations, nil
}

func (p *Postgres) DeleteConversation(ctx context.Context, id string) error {
	if !validID(id) {
		return notFound(id)
	}

	tag, err := p.Pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return classifyPgError(fmt.Errorf("postgres: delete conversation: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// AppendMessage locks the conversation row so that concurrent appends are
// ordered and every message is stamped after its predecessor.
func (p *Postgres) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("postgres: invalid role %q", role)
	}
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var last time.Time
	err = tx.QueryRow(ctx, "SELECT updated_at FROM conversations WHERE id = $1 FOR UPDATE", conversationID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(conversationID)
	}
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("postgres: lock conversation: %w", err))
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      models.NextMessageTime(time.Now(), last, time.Microsecond),
	}
	if err := insertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "UPDATE conversations SET updated_at = $2 WHERE id = $1", conversationID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("postgres: touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit message: %w", err)
	}
	return &msg, nil
}

func (p *Postgres) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	rows, err := p.Pool.Query(ctx, strings.Join([]string{
		"SELECT id::text, conversation_id::text, role, content, created_at",
		"FROM messages WHERE conversation_id = $1",
		"ORDER BY created_at ASC, id ASC",
	}, "\n"), conversationID)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("postgres: list messages: %w", err))
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list messages: %w", err)
	}
	return messages, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg models.Message) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)",
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return classifyPgError(fmt.Errorf("postgres: insert message: %w", err))
	}
	return nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	var userID *string
	var count int64
	if err := row.Scan(&conv.ID, &conv.Title, &userID, &conv.CreatedAt, &conv.UpdatedAt, &count); err != nil {
		return nil, err
	}
	if userID != nil {
		conv.SessionID = *userID
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	conv.MessageCount = int(count)
	return &conv, nil
}

func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.ForeignKeyViolation, pgerrcode.InvalidTextRepresentation:
		return fmt.Errorf("%w: %v", models.ErrConversationNotFound, err)
	case pgerrcode.UndefinedTable:
		return fmt.Errorf("postgres: schema missing, run migrate_schema: %w", err)
	}
	return err
}
