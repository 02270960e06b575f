package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ragchat/internal/api"
	"ragchat/internal/config"
	"ragchat/internal/conversation"
	"ragchat/internal/lead"
	"ragchat/internal/logging"
	"ragchat/internal/redis"
	"ragchat/internal/service/ai"
	"ragchat/internal/service/assistant"
	"ragchat/internal/service/retrieval"
	"ragchat/internal/storage"
	"ragchat/internal/vectorstore"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("RAGCHAT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Server.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vectors, err := vectorstore.New(ctx, cfg.VectorStore, logger)
	if err != nil {
		logger.Fatal("open vector store", zap.Error(err))
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx); err != nil {
		logger.Fatal("ensure collection", zap.Error(err))
	}

	embedder, err := retrieval.NewOpenAIEmbedder(ctx, cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("init embedder", zap.Error(err))
	}
	provider, provCfg := cfg.Provider()
	chatModel, err := ai.NewChatModel(ctx, provider, provCfg, cfg.Chat.MaxTokens)
	if err != nil {
		logger.Fatal("init chat model", zap.String("provider", provider), zap.Error(err))
	}
	gen := ai.NewGenerator(chatModel, ai.GeneratorOptions{
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		HistoryTurns: cfg.Chat.HistoryTurns,
	})
	names := ai.NewNameExtractor(chatModel, cfg.Chat.Temperature, logger)
	leads := lead.NewLogger(cfg.Lead.WebhookURL, time.Duration(cfg.Lead.TimeoutSeconds)*time.Second, logger)

	backends, closeBackends := openConversationBackends(cfg, logger)
	defer closeBackends()

	var services []*assistant.Service
	for _, vc := range cfg.Variants {
		variant, err := assistant.VariantFromConfig(vc)
		if err != nil {
			logger.Fatal("configure variant", zap.String("variant", vc.Name), zap.Error(err))
		}
		store, err := conversation.New(cfg.Conversations.Backend, variant.Name, backends)
		if err != nil {
			logger.Fatal("open conversation store", zap.String("variant", variant.Name), zap.Error(err))
		}
		svc, err := assistant.NewService(variant, assistant.Deps{
			Store:    store,
			Embedder: embedder,
			Searcher: vectors,
			Gen:      gen,
			Names:    names,
			Leads:    leads,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("init assistant service", zap.String("variant", variant.Name), zap.Error(err))
		}
		services = append(services, svc)
		logger.Info("variant mounted", zap.String("variant", variant.Name), zap.String("prefix", variant.RoutePrefix))
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger))
	api.NewHandler(services, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openConversationBackends connects only what the configured conversation store needs.
func openConversationBackends(cfg *config.Config, logger *zap.Logger) (conversation.Backends, func()) {
	backend := strings.ToLower(cfg.Conversations.Backend)
	switch backend {
	case "redis":
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("create redis client", zap.Error(err))
		}
		return conversation.Backends{Redis: rdb}, func() { rdb.Close() }
	case "sqlite", "sqlite3", "mysql":
		db, err := storage.Open(backend, cfg)
		if err != nil {
			logger.Fatal("open database", zap.String("driver", backend), zap.Error(err))
		}
		if err := storage.Migrate(db, backend); err != nil {
			logger.Fatal("migrate database", zap.Error(err))
		}
		return conversation.Backends{DB: db}, func() { db.Close() }
	default:
		return conversation.Backends{}, func() {}
	}
}
