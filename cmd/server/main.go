package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/ragchat/internal/chat"
	"github.com/xaenox/ragchat/internal/chunker"
	"github.com/xaenox/ragchat/internal/embedding"
	"github.com/xaenox/ragchat/internal/extractor"
	"github.com/xaenox/ragchat/internal/ingest"
	"github.com/xaenox/ragchat/internal/llm"
	"github.com/xaenox/ragchat/internal/server"
	"github.com/xaenox/ragchat/internal/storage"
	"github.com/xaenox/ragchat/internal/vectorstore"
	"github.com/xaenox/ragchat/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize conversation storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory conversation storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL conversation storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize vector index
	var vectors vectorstore.Store
	if cfg.VectorStore.UseInMemory {
		logger.Info("Using in-memory vector store")
		vectors = vectorstore.NewMemoryStore()
	} else {
		logger.Info("Using pgvector store")
		vectors, err = vectorstore.NewPgVectorStore(vectorstore.PgVectorConfig{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			DBName:    cfg.Database.DBName,
			SSLMode:   cfg.Database.SSLMode,
			Dimension: cfg.VectorStore.Dimension,
		})
		if err != nil {
			logger.Fatal("Failed to initialize vector store", zap.Error(err))
		}
	}
	defer vectors.Close()

	// One OpenAI-compatible client shared by embeddings and completions
	clientConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAI.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	embedder := embedding.NewOpenAI(client, cfg.OpenAI.EmbeddingModel, logger)
	completer := llm.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)

	ch, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunker configuration", zap.Error(err))
	}

	ingestService := ingest.NewService(
		store,
		vectors,
		embedder,
		extractor.NewPDF(logger),
		ch,
		cfg.Server.UploadDir,
		logger,
	)
	chatService := chat.NewService(
		store,
		vectors,
		embedder,
		completer,
		cfg.Chat.TopK,
		cfg.Chat.HistoryLimit,
		time.Duration(cfg.Chat.CompletionTimeoutSecs)*time.Second,
		logger,
	)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}, ingestService, chatService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
