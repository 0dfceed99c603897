package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"confluence/internal/auth"
	"confluence/internal/broker"
	"confluence/internal/config"
	"confluence/internal/handler"
	"confluence/internal/handler/sse"
	"confluence/internal/middleware"
	"confluence/internal/provider"
	"confluence/internal/repository/postgres"
	postgresChat "confluence/internal/repository/postgres/chat"
	chatService "confluence/internal/service/chat"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	verifier, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}
	defer verifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgresChat.NewChatRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	streamRepo := postgresChat.NewStreamRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Stream broker: resumption is optional and the service degrades to
	// direct-only streaming when Redis is not configured.
	var streamBroker broker.Broker = broker.NewDisabled()
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisBroker, err := broker.NewRedisBroker(redis.NewClient(redisOpts), cfg.StreamRetention, logger)
		if err != nil {
			logger.Warn("redis unreachable, stream resumption disabled", "error", err)
		} else {
			streamBroker = redisBroker
			logger.Info("stream broker connected", "retention", cfg.StreamRetention)
		}
	} else {
		logger.Info("no REDIS_URL configured, stream resumption disabled")
	}

	// Model provider: a static provider keeps local development working
	// without credentials.
	var modelProvider provider.Provider
	if cfg.OpenAIAPIKey != "" {
		modelProvider = provider.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger)
	} else {
		logger.Warn("no OPENAI_API_KEY configured, using static provider")
		modelProvider = &provider.StaticProvider{
			Reply: "This deployment has no model provider configured.",
			Delay: 50 * time.Millisecond,
		}
	}

	pricing, err := provider.LoadPricing(cfg.PricingFile)
	if err != nil {
		log.Fatalf("Failed to load pricing catalog: %v", err)
	}

	service := chatService.NewService(
		chatRepo,
		messageRepo,
		streamRepo,
		txManager,
		streamBroker,
		modelProvider,
		pricing,
		chatService.Options{
			DefaultModel:    cfg.DefaultModel,
			TitleModel:      cfg.TitleModel,
			ResumeFreshness: cfg.ResumeFreshness,
		},
		logger,
	)

	chatHandler := handler.NewChatHandler(service, sse.DefaultConfig(), logger)
	healthHandler := handler.NewHealthHandler(pool, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Check)

	// Chat routes
	mux.HandleFunc("POST /api/chat", chatHandler.CreateTurn)
	mux.HandleFunc("DELETE /api/chat", chatHandler.Delete)
	mux.HandleFunc("GET /api/chat/{id}/stream", chatHandler.Resume)
	mux.HandleFunc("GET /api/chat/{id}/messages", chatHandler.Messages)
	mux.HandleFunc("PATCH /api/chat/{id}/visibility", chatHandler.UpdateVisibility)
	mux.HandleFunc("GET /api/history", chatHandler.History)

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	httpHandler = middleware.Auth(verifier)(httpHandler)
	httpHandler = middleware.Recovery(logger)(httpHandler)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
