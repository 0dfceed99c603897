package chat

import (
	"time"
)

// Role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message belongs to exactly one chat. CreatedAt is the sole ordering key
// within a conversation. Messages are immutable once written; the only
// mutation is trailing deletion (edit-and-resubmit removes everything at or
// after a creation time).
type Message struct {
	ID          string         `json:"id" db:"id"`
	ChatID      string         `json:"chat_id" db:"chat_id"`
	Role        string         `json:"role" db:"role"`
	Parts       []Part         `json:"parts" db:"parts"`
	Attachments map[string]any `json:"attachments,omitempty" db:"attachments"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// ValidRole reports whether r is a recognized message role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}
