package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role may be persisted in a conversation.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages,omitempty"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NextMessageTime returns a timestamp strictly after previous at the given
// precision, using now when it is already later.
func NextMessageTime(now, previous time.Time, precision time.Duration) time.Time {
	now = now.UTC().Truncate(precision)
	if previous.IsZero() {
		return now
	}
	floor := previous.UTC().Truncate(precision).Add(precision)
	if now.Before(floor) {
		return floor
	}
	return now
}
