package chat

import (
	"time"
)

// StreamRecord ties one generation attempt's stream id to its chat.
// Records are append-only: one per attempt (including retries and
// regenerations), never updated, deleted only when the chat is deleted.
// The latest record by CreatedAt is the one resume consults.
type StreamRecord struct {
	ID        string    `json:"id" db:"id"`
	StreamID  string    `json:"stream_id" db:"stream_id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
