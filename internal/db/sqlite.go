package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

// SQLite stores conversations in a single local file. Timestamps are kept as
// unix microseconds so ordering matches the Postgres backend.
type SQLite struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT 'New Conversation',
		user_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user_updated ON conversations(user_id, updated_at)`,
}

func NewSQLite(ctx context.Context, cfg utils.SQLiteConfig) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	store := &SQLite{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite: database not initialised")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) CreateConversation(ctx context.Context, title, sessionID, firstMessage string) (*models.Conversation, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     titleOrDefault(title),
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversations (id, title, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		conv.ID, conv.Title, nullableString(sessionID), now.UnixMicro(), now.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert conversation: %w", err)
	}

	if firstMessage != "" {
		msg := models.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           models.RoleUser,
			Content:        firstMessage,
			CreatedAt:      now,
		}
		if err := sqliteInsertMessage(ctx, tx, msg); err != nil {
			return nil, err
		}
		conv.Messages = []models.Message{msg}
		conv.MessageCount = 1
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLite) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if !validID(id) {
		return nil, notFound(id)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.user_id, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c WHERE c.id = ?`, id)

	conv, err := sqliteScanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLite) ListConversations(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.user_id, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE (? = '' OR c.user_id = ?)
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		LIMIT ?`, sessionID, sessionID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := sqliteScanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	return conversations, nil
}

func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	if !validID(id) {
		return notFound(id)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete conversation: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLite) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string) (*models.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("sqlite: invalid role %q", role)
	}
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	var lastMicros int64
	err = tx.QueryRowContext(ctx, "SELECT updated_at FROM conversations WHERE id = ?", conversationID).Scan(&lastMicros)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read conversation: %w", err)
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      models.NextMessageTime(time.Now(), time.UnixMicro(lastMicros), time.Microsecond),
	}
	if err := sqliteInsertMessage(ctx, tx, msg); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", msg.CreatedAt.UnixMicro(), conversationID); err != nil {
		return nil, fmt.Errorf("sqlite: touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit message: %w", err)
	}
	return &msg, nil
}

func (s *SQLite) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if !validID(conversationID) {
		return nil, notFound(conversationID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role string
		var created int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = time.UnixMicro(created).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	return messages, nil
}

func sqliteInsertMessage(ctx context.Context, tx *sql.Tx, msg models.Message) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanConversation(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var userID sql.NullString
	var created, updated, count int64
	if err := row.Scan(&conv.ID, &conv.Title, &userID, &created, &updated, &count); err != nil {
		return nil, err
	}
	conv.SessionID = userID.String
	conv.CreatedAt = time.UnixMicro(created).UTC()
	conv.UpdatedAt = time.UnixMicro(updated).UTC()
	conv.MessageCount = int(count)
	return &conv, nil
}
