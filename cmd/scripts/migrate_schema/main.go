package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/moibraahim/gymnation-task/internal/db"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := utils.FromEnv()

	backend := flag.String("backend", cfg.ConversationBackend, "conversation backend: postgres, mongo or sqlite")
	inspectOnly := flag.Bool("inspect", false, "print the current postgres columns without migrating")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch *backend {
	case utils.BackendPostgres:
		migratePostgres(ctx, cfg.Postgres, *inspectOnly)
	case utils.BackendMongo:
		store, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			log.Fatalf("connect mongo: %v", err)
		}
		defer store.Close(context.Background())
		if err := store.EnsureCollections(ctx); err != nil {
			log.Fatalf("ensure collections: %v", err)
		}
		fmt.Printf("mongo indexes ensured on %s\n", cfg.Mongo.Database)
	case utils.BackendSQLite:
		store, err := db.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer store.Close()
		fmt.Printf("sqlite schema ensured at %s\n", cfg.SQLite.Path)
	default:
		log.Fatalf("unsupported backend %q", *backend)
	}

	fmt.Printf("done at %s\n", time.Now().Format(time.RFC3339))
}

func migratePostgres(ctx context.Context, cfg utils.PostgresConfig, inspectOnly bool) {
	store, err := db.NewPostgres(ctx, cfg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	if !inspectOnly {
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
	}

	const verify = `SELECT table_name, column_name, data_type FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name IN ('conversations', 'messages')
		ORDER BY table_name, ordinal_position`
	rows, err := store.Pool.Query(ctx, verify)
	if err != nil {
		log.Fatalf("verify columns: %v", err)
	}
	defer rows.Close()

	current := ""
	for rows.Next() {
		var table, name, dtype string
		if err := rows.Scan(&table, &name, &dtype); err != nil {
			log.Fatalf("scan: %v", err)
		}
		if table != current {
			fmt.Printf("%s columns:\n", table)
			current = table
		}
		fmt.Printf("- %s (%s)\n", name, dtype)
	}
	if rows.Err() != nil {
		log.Fatalf("rows: %v", rows.Err())
	}
	if current == "" {
		fmt.Println("no conversation tables found; run without -inspect to create them")
	}
}
