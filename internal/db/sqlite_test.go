package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/moibraahim/gymnation-task/internal/db"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

func TestSQLiteConversationStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conversations.db")

	store, err := db.NewSQLite(context.Background(), utils.SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	runStoreContract(t, store)
}

func TestSQLiteRequiresPath(t *testing.T) {
	if _, err := db.NewSQLite(context.Background(), utils.SQLiteConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
