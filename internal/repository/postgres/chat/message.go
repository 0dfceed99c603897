package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
	chatRepo "confluence/internal/domain/repositories/chat"
	"confluence/internal/repository/postgres"
)

// PostgresMessageRepository implements the MessageRepository interface using PostgreSQL
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewMessageRepository creates a new PostgresMessageRepository
func NewMessageRepository(config *postgres.RepositoryConfig) chatRepo.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateMessage inserts a message with the caller-supplied id.
func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, m *chatModels.Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, chat_id, role, parts, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		m.ID,
		m.ChatID,
		m.Role,
		m.Parts,       // pgx handles slice -> JSONB
		m.Attachments, // pgx handles map -> JSONB (nil becomes NULL)
		m.CreatedAt,
	).Scan(&m.CreatedAt)

	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("chat %s: %w", m.ChatID, domain.ErrNotFound)
		}
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// ListMessagesByChat returns all messages for a chat ordered by creation time.
func (r *PostgresMessageRepository) ListMessagesByChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at ASC
	`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []chatModels.Message
	for rows.Next() {
		var m chatModels.Message
		err := rows.Scan(
			&m.ID,
			&m.ChatID,
			&m.Role,
			&m.Parts,
			&m.Attachments,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if messages == nil {
		messages = []chatModels.Message{}
	}

	return messages, nil
}

// LatestMessage returns the newest message, (nil, nil) when the chat is empty.
func (r *PostgresMessageRepository) LatestMessage(ctx context.Context, chatID string) (*chatModels.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, role, parts, attachments, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, r.tables.Messages)

	var m chatModels.Message
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, chatID).Scan(
		&m.ID,
		&m.ChatID,
		&m.Role,
		&m.Parts,
		&m.Attachments,
		&m.CreatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest message: %w", err)
	}

	return &m, nil
}

// DeleteMessagesFrom deletes every message created at or after the given
// time. Supports edit-and-resubmit.
func (r *PostgresMessageRepository) DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE chat_id = $1 AND created_at >= $2`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, chatID, from); err != nil {
		return fmt.Errorf("delete trailing messages: %w", err)
	}

	return nil
}

// DeleteMessagesByChat removes all messages for a chat.
func (r *PostgresMessageRepository) DeleteMessagesByChat(ctx context.Context, chatID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE chat_id = $1`, r.tables.Messages)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	return nil
}
