package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
	chatRepo "confluence/internal/domain/repositories/chat"
	"confluence/internal/repository/postgres"
)

// PostgresStreamRepository implements the StreamRepository interface using
// PostgreSQL. It is the stream ledger: append-only inserts plus a
// latest-by-creation lookup, nothing else.
type PostgresStreamRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewStreamRepository creates a new PostgresStreamRepository
func NewStreamRepository(config *postgres.RepositoryConfig) chatRepo.StreamRepository {
	return &PostgresStreamRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// RecordStream appends a stream record for a chat.
func (r *PostgresStreamRepository) RecordStream(ctx context.Context, rec *chatModels.StreamRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, stream_id, chat_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, r.tables.Streams)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		rec.ID,
		rec.StreamID,
		rec.ChatID,
		rec.CreatedAt,
	).Scan(&rec.CreatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("chat %s: %w", rec.ChatID, domain.ErrNotFound)
		}
		return fmt.Errorf("record stream: %w", err)
	}

	return nil
}

// LatestStreamID returns the most recent stream id for the chat,
// ("", nil) when none was ever recorded.
func (r *PostgresStreamRepository) LatestStreamID(ctx context.Context, chatID string) (string, error) {
	query := fmt.Sprintf(`
		SELECT stream_id
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, r.tables.Streams)

	var streamID string
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, chatID).Scan(&streamID)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return "", nil
		}
		return "", fmt.Errorf("latest stream: %w", err)
	}

	return streamID, nil
}

// DeleteStreamsByChat removes all stream records for a chat.
func (r *PostgresStreamRepository) DeleteStreamsByChat(ctx context.Context, chatID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE chat_id = $1`, r.tables.Streams)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, chatID); err != nil {
		return fmt.Errorf("delete streams: %w", err)
	}

	return nil
}
