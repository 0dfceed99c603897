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

// PostgresChatRepository implements the ChatRepository interface using PostgreSQL
type PostgresChatRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewChatRepository creates a new PostgresChatRepository
func NewChatRepository(config *postgres.RepositoryConfig) chatRepo.ChatRepository {
	return &PostgresChatRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateChat inserts a chat with the caller-supplied id.
func (r *PostgresChatRepository) CreateChat(ctx context.Context, c *chatModels.Chat) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, visibility, last_context, selected_model_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		c.ID,
		c.UserID,
		c.Title,
		c.Visibility,
		c.LastContext, // pgx handles map -> JSONB (nil becomes NULL)
		c.SelectedModelID,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return fmt.Errorf("chat %s: %w", c.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create chat: %w", err)
	}

	return nil
}

// GetChat fetches a chat by id regardless of owner. Absence is an expected
// outcome during turn resolution, so it returns (nil, nil) rather than an
// error.
func (r *PostgresChatRepository) GetChat(ctx context.Context, chatID string) (*chatModels.Chat, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, title, visibility, last_context, selected_model_id, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Chats)

	var c chatModels.Chat
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, chatID).Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.Visibility,
		&c.LastContext,
		&c.SelectedModelID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return &c, nil
}

// ListChatsByUser returns the user's chats newest-first. When endingBefore
// is set, only chats created before that chat are returned.
func (r *PostgresChatRepository) ListChatsByUser(ctx context.Context, userID string, limit int, endingBefore string) ([]chatModels.Chat, error) {
	executor := postgres.GetExecutor(ctx, r.pool)

	var cursor *time.Time
	if endingBefore != "" {
		query := fmt.Sprintf(`SELECT created_at FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Chats)
		var createdAt time.Time
		if err := executor.QueryRow(ctx, query, endingBefore, userID).Scan(&createdAt); err != nil {
			if postgres.IsPgNoRowsError(err) {
				return nil, fmt.Errorf("cursor chat %s: %w", endingBefore, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("resolve pagination cursor: %w", err)
		}
		cursor = &createdAt
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, title, visibility, last_context, selected_model_id, created_at, updated_at
		FROM %s
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, r.tables.Chats)

	rows, err := executor.Query(ctx, query, userID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []chatModels.Chat
	for rows.Next() {
		var c chatModels.Chat
		err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Title,
			&c.Visibility,
			&c.LastContext,
			&c.SelectedModelID,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	if chats == nil {
		chats = []chatModels.Chat{}
	}

	return chats, nil
}

// UpdateTitle sets the chat title.
func (r *PostgresChatRepository) UpdateTitle(ctx context.Context, chatID, title string) error {
	return r.update(ctx, chatID, "title", title)
}

// UpdateVisibility sets public/private.
func (r *PostgresChatRepository) UpdateVisibility(ctx context.Context, chatID, visibility string) error {
	return r.update(ctx, chatID, "visibility", visibility)
}

// UpdateLastContext stores the opaque usage snapshot.
func (r *PostgresChatRepository) UpdateLastContext(ctx context.Context, chatID string, snapshot map[string]any) error {
	return r.update(ctx, chatID, "last_context", snapshot)
}

func (r *PostgresChatRepository) update(ctx context.Context, chatID, column string, value any) error {
	// column names come from the fixed set above, never from input
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, updated_at = $2 WHERE id = $3
	`, r.tables.Chats, column)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, value, time.Now(), chatID)
	if err != nil {
		return fmt.Errorf("update chat %s: %w", column, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}

	return nil
}

// DeleteChat removes the chat row.
func (r *PostgresChatRepository) DeleteChat(ctx context.Context, chatID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}

	return nil
}
