package config

const (
	// MaxChatTitleLength is the maximum length for chat titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255) and provide
	// reasonable UX (titles should be short and descriptive).
	MaxChatTitleLength = 255

	// MaxMessageParts caps the number of content parts a single
	// inbound message may carry. Larger payloads indicate a broken
	// client rather than a legitimate conversation turn.
	MaxMessageParts = 64

	// MaxHistoryPageSize is the maximum number of chats a single
	// history page may return.
	MaxHistoryPageSize = 100
)
