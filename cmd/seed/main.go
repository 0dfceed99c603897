// Command seed prepares the database schema and optionally inserts a
// demo conversation for local development.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"confluence/internal/config"
	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/repository/postgres"
	postgresChat "confluence/internal/repository/postgres/chat"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating schema (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed demo data")
	demoUser := flag.String("demo-user", "", "User id to own the seeded demo chat")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatal("BLOCKED: cannot run --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		logger.Info("dropping tables", "prefix", cfg.TablePrefix)
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	logger.Info("ensuring schema", "prefix", cfg.TablePrefix)
	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	if *schemaOnly {
		logger.Info("schema setup complete")
		return
	}

	userID := *demoUser
	if userID == "" {
		logger.Info("no --demo-user given, skipping demo data")
		return
	}

	if err := seedDemoChat(ctx, pool, tables, logger, userID); err != nil {
		log.Fatalf("Failed to seed demo chat: %v", err)
	}
	logger.Info("demo data seeded", "user_id", userID)
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	stmts := []string{
		"DROP TABLE IF EXISTS " + tables.Streams + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Messages + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Chats + " CASCADE",
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	schema := `
		CREATE TABLE IF NOT EXISTS ` + tables.Chats + ` (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			visibility VARCHAR(16) NOT NULL DEFAULT 'private',
			last_context JSONB,
			selected_model_id VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_` + tables.Chats + `_user_created
			ON ` + tables.Chats + ` (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id VARCHAR(64) PRIMARY KEY,
			chat_id VARCHAR(64) NOT NULL REFERENCES ` + tables.Chats + `(id) ON DELETE CASCADE,
			role VARCHAR(16) NOT NULL,
			parts JSONB NOT NULL,
			attachments JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_` + tables.Messages + `_chat_created
			ON ` + tables.Messages + ` (chat_id, created_at);

		CREATE TABLE IF NOT EXISTS ` + tables.Streams + ` (
			id VARCHAR(64) PRIMARY KEY,
			stream_id VARCHAR(64) NOT NULL,
			chat_id VARCHAR(64) NOT NULL REFERENCES ` + tables.Chats + `(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_` + tables.Streams + `_chat_created
			ON ` + tables.Streams + ` (chat_id, created_at DESC);
	`
	_, err := pool.Exec(ctx, schema)
	return err
}

// seedDemoChat inserts one finished conversation through the repository
// layer, exercising the same paths the server uses.
func seedDemoChat(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, logger *slog.Logger, userID string) error {
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgresChat.NewChatRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	streamRepo := postgresChat.NewStreamRepository(repoConfig)

	now := time.Now()
	chatID := uuid.NewString()
	if err := chatRepo.CreateChat(ctx, &chatModels.Chat{
		ID:         chatID,
		UserID:     userID,
		Title:      "Welcome conversation",
		Visibility: chatModels.VisibilityPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}

	if err := messageRepo.CreateMessage(ctx, &chatModels.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chatModels.RoleUser,
		Parts:     []chatModels.Part{chatModels.TextPart("Hello, what can you do?")},
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := messageRepo.CreateMessage(ctx, &chatModels.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      chatModels.RoleAssistant,
		Parts:     []chatModels.Part{chatModels.TextPart("I can answer questions and keep streaming even if you reload the page.")},
		CreatedAt: now.Add(time.Second),
	}); err != nil {
		return err
	}

	return streamRepo.RecordStream(ctx, &chatModels.StreamRecord{
		ID:        uuid.NewString(),
		StreamID:  uuid.NewString(),
		ChatID:    chatID,
		CreatedAt: now,
	})
}
