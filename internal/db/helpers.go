package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moibraahim/gymnation-task/internal/models"
)

const (
	DefaultConversationTitle = "New Conversation"
	DefaultListLimit         = 50
)

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}

func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", models.ErrConversationNotFound, id)
}

func titleOrDefault(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultConversationTitle
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
