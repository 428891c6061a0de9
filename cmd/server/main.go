package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/api"
	"github.com/moibraahim/gymnation-task/internal/booking"
	"github.com/moibraahim/gymnation-task/internal/chat"
	"github.com/moibraahim/gymnation-task/internal/db"
	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/prompts"
	"github.com/moibraahim/gymnation-task/internal/retrieval"
	"github.com/moibraahim/gymnation-task/internal/tools"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to initialise: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openConversationStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("conversation store unavailable", zap.String("backend", cfg.ConversationBackend), zap.Error(err))
	}
	defer closeStore()

	builder := prompts.NewBuilder(cfg.RAG.MaxContextChars)
	if cfg.Prompts.File != "" {
		if err := builder.Load(cfg.Prompts.File); err != nil {
			logger.Fatal("prompt templates invalid", zap.String("file", cfg.Prompts.File), zap.Error(err))
		}
		if cfg.Prompts.Watch {
			if err := builder.Watch(ctx, cfg.Prompts.File, logger); err != nil {
				logger.Warn("prompt hot reload disabled", zap.Error(err))
			}
		}
	}
	if _, err := builder.Template(cfg.Turn.DefaultPromptType); err != nil {
		logger.Fatal("default prompt type invalid", zap.Error(err))
	}
	logger.Info("prompt templates ready",
		zap.Strings("types", builder.Names()),
		zap.Int("max_context_chars", builder.MaxContextChars()),
	)

	model, err := llm.New(cfg.Model, logger)
	if err != nil {
		logger.Fatal("model client", zap.Error(err))
	}

	var retriever chat.Retriever
	if client, index, err := newRetrievalClient(ctx, cfg, logger); err != nil {
		logger.Warn("retrieval disabled", zap.Error(err))
	} else {
		retriever = client
		defer index.Close()
	}

	dispatcher := tools.NewDispatcher(booking.NewMemoryStore(), logger)
	orchestrator := chat.NewOrchestrator(model, builder, retriever, dispatcher, chat.OrchestratorConfig{
		MaxToolRounds:     cfg.Turn.MaxToolRounds,
		DefaultPromptType: cfg.Turn.DefaultPromptType,
		TopK:              cfg.RAG.TopK,
	}, logger)
	service := chat.NewService(store, orchestrator, builder, cfg.Turn.Timeout, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(service, logger))

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Turn.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("provider", cfg.Model.Provider),
			zap.String("model", cfg.Model.Name),
			zap.String("backend", cfg.ConversationBackend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func openConversationStore(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (chat.ConversationStore, func(), error) {
	switch cfg.ConversationBackend {
	case utils.BackendPostgres:
		postgres, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Ping(ctx); err != nil {
			postgres.Close()
			return nil, nil, fmt.Errorf("postgres: ping failed: %w", err)
		}
		if err := postgres.EnsureSchema(ctx); err != nil {
			postgres.Close()
			return nil, nil, err
		}
		return postgres, postgres.Close, nil

	case utils.BackendMongo:
		mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := mongoStore.Close(context.Background()); err != nil {
				logger.Warn("mongo: close error", zap.Error(err))
			}
		}
		if err := mongoStore.EnsureCollections(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return mongoStore, closeFn, nil

	case utils.BackendSQLite:
		sqlite, err := db.NewSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return sqlite, func() { _ = sqlite.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported conversation backend %q", cfg.ConversationBackend)
}

func newRetrievalClient(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (*retrieval.Client, *retrieval.PineconeIndex, error) {
	embedder, err := retrieval.NewOpenAIEmbedder(cfg.Embedding, cfg.Pinecone.Dimension)
	if err != nil {
		return nil, nil, err
	}

	index, err := retrieval.NewPineconeIndex(ctx, cfg.Pinecone, nil)
	if err != nil {
		return nil, nil, err
	}

	var cache retrieval.EmbeddingCache
	if cfg.Redis.Enabled() {
		client, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("embedding cache disabled", zap.Error(err))
		} else {
			cache = retrieval.NewRedisCache(client, cfg.Redis.TTL)
		}
	}

	return retrieval.NewClient(embedder, index, cache, retrieval.Options{
		MinScore:    cfg.RAG.MinScore,
		DefaultTopK: cfg.RAG.TopK,
	}, logger), index, nil
}
