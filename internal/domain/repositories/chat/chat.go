package chat

import (
	"context"
	"time"

	chatModels "confluence/internal/domain/models/chat"
)

// ChatRepository persists conversations.
//
// GetChat returns (nil, nil) when the chat does not exist: absence is an
// expected outcome during turn resolution, not an error.
type ChatRepository interface {
	// CreateChat inserts a chat. The caller supplies the id.
	CreateChat(ctx context.Context, c *chatModels.Chat) error

	// GetChat fetches a chat by id regardless of owner. Returns (nil, nil)
	// if absent.
	GetChat(ctx context.Context, chatID string) (*chatModels.Chat, error)

	// ListChatsByUser returns the user's chats newest-first. endingBefore,
	// when non-empty, pages past the chat with that id.
	ListChatsByUser(ctx context.Context, userID string, limit int, endingBefore string) ([]chatModels.Chat, error)

	// UpdateTitle sets the chat title. Used by background title derivation.
	UpdateTitle(ctx context.Context, chatID, title string) error

	// UpdateVisibility sets public/private.
	UpdateVisibility(ctx context.Context, chatID, visibility string) error

	// UpdateLastContext stores the opaque usage snapshot from the latest
	// completed turn.
	UpdateLastContext(ctx context.Context, chatID string, snapshot map[string]any) error

	// DeleteChat removes the chat row. Messages and stream records are
	// deleted by the caller in the same transaction.
	DeleteChat(ctx context.Context, chatID string) error
}

// MessageRepository persists messages. Messages are immutable; the only
// delete is the trailing form used by edit-and-resubmit and the full
// cascade when a chat is removed.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m *chatModels.Message) error

	// ListMessagesByChat returns all messages ordered by creation time.
	ListMessagesByChat(ctx context.Context, chatID string) ([]chatModels.Message, error)

	// LatestMessage returns the newest message, (nil, nil) when the chat is
	// empty.
	LatestMessage(ctx context.Context, chatID string) (*chatModels.Message, error)

	// DeleteMessagesFrom deletes every message in the chat created at or
	// after the given time.
	DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error

	// DeleteMessagesByChat removes all messages for a chat.
	DeleteMessagesByChat(ctx context.Context, chatID string) error
}

// StreamRepository is the stream ledger: an append-only registry of
// generation stream ids per chat.
type StreamRepository interface {
	// RecordStream appends a stream record.
	RecordStream(ctx context.Context, rec *chatModels.StreamRecord) error

	// LatestStreamID returns the most recent stream id for the chat,
	// ("", nil) when none was ever recorded.
	LatestStreamID(ctx context.Context, chatID string) (string, error)

	// DeleteStreamsByChat removes all stream records for a chat.
	DeleteStreamsByChat(ctx context.Context, chatID string) error
}
