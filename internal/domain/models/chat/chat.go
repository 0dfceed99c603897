package chat

import (
	"time"
)

// Visibility constants
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Chat is one conversation owned by a user. Created on the first user
// message; LastContext holds the opaque usage snapshot from the most recent
// completed turn (shape varies by provider, never schema-validated beyond
// "object").
type Chat struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	Title           string         `json:"title" db:"title"`
	Visibility      string         `json:"visibility" db:"visibility"`
	LastContext     map[string]any `json:"last_context,omitempty" db:"last_context"`
	SelectedModelID *string        `json:"selected_model_id,omitempty" db:"selected_model_id"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// IsVisibleTo reports whether userID may read this chat.
// Public chats are readable by anyone with an identity.
func (c *Chat) IsVisibleTo(userID string) bool {
	if c.Visibility == VisibilityPublic {
		return true
	}
	return c.UserID == userID
}

// ValidVisibility reports whether v is a recognized visibility value.
func ValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
