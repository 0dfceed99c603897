package chat

import (
	"context"

	"confluence/internal/config"
	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
)

// History returns a page of the user's chats, newest first.
// endingBefore pages past the chat with that id; HasMore tells the
// client whether another page exists.
type HistoryPage struct {
	Chats   []chatModels.Chat `json:"chats"`
	HasMore bool              `json:"hasMore"`
}

func (s *Service) History(ctx context.Context, userID string, limit int, endingBefore string) (*HistoryPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > config.MaxHistoryPageSize {
		return nil, domain.NewChatError(domain.CodeBadRequest, domain.SurfaceAPI,
			"limit exceeds maximum page size")
	}

	// Fetch one extra row to detect whether another page follows.
	chats, err := s.chats.ListChatsByUser(ctx, userID, limit+1, endingBefore)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Chats: chats, HasMore: false}
	if len(chats) > limit {
		page.Chats = chats[:limit]
		page.HasMore = true
	}
	if page.Chats == nil {
		page.Chats = []chatModels.Chat{}
	}
	return page, nil
}

// Messages returns every message of a chat the caller may read,
// ordered oldest first.
func (s *Service) Messages(ctx context.Context, chatID, userID string) ([]chatModels.Message, error) {
	c, err := s.loadVisibleChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessagesByChat(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []chatModels.Message{}
	}
	return msgs, nil
}

// UpdateVisibility switches a chat between private and public. Owner only.
func (s *Service) UpdateVisibility(ctx context.Context, chatID, userID, visibility string) error {
	if !chatModels.ValidVisibility(visibility) {
		return domain.NewChatError(domain.CodeBadRequest, domain.SurfaceAPI,
			"visibility must be public or private")
	}
	c, err := s.loadOwnedChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if err := s.chats.UpdateVisibility(ctx, c.ID, visibility); err != nil {
		return err
	}
	s.logger.Info("chat visibility updated", "id", c.ID, "visibility", visibility)
	return nil
}

// Delete removes a chat with its messages and stream ledger entries in
// one transaction. Owner only. Returns the deleted chat.
func (s *Service) Delete(ctx context.Context, chatID, userID string) (*chatModels.Chat, error) {
	c, err := s.loadOwnedChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.messages.DeleteMessagesByChat(txCtx, c.ID); err != nil {
			return err
		}
		if err := s.streams.DeleteStreamsByChat(txCtx, c.ID); err != nil {
			return err
		}
		return s.chats.DeleteChat(txCtx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat deleted", "id", c.ID, "user_id", userID)
	return c, nil
}
