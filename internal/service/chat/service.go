// Package chat implements the turn lifecycle: accepting a user message,
// streaming the model's response to the caller and to the resumable
// stream broker, and finalizing the turn in the database regardless of
// whether the caller is still connected.
package chat

import (
	"context"
	"log/slog"
	"time"

	"confluence/internal/broker"
	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/domain/repositories"
	chatRepo "confluence/internal/domain/repositories/chat"
	"confluence/internal/provider"
)

// Options tunes turn execution and resumption.
type Options struct {
	// DefaultModel is used when the request does not select a model.
	DefaultModel string

	// TitleModel generates chat titles from the first user message.
	TitleModel string

	// ResumeFreshness bounds how old a finished turn may be and still be
	// delivered as a catch-up message on resume.
	ResumeFreshness time.Duration
}

// Service coordinates chats, messages, the stream ledger, the broker,
// and the model provider.
type Service struct {
	chats     chatRepo.ChatRepository
	messages  chatRepo.MessageRepository
	streams   chatRepo.StreamRepository
	txManager repositories.TransactionManager
	broker    broker.Broker
	provider  provider.Provider
	pricing   *provider.PricingCatalog
	opts      Options
	logger    *slog.Logger
}

func NewService(
	chats chatRepo.ChatRepository,
	messages chatRepo.MessageRepository,
	streams chatRepo.StreamRepository,
	txManager repositories.TransactionManager,
	b broker.Broker,
	p provider.Provider,
	pricing *provider.PricingCatalog,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.ResumeFreshness <= 0 {
		opts.ResumeFreshness = 15 * time.Second
	}
	return &Service{
		chats:     chats,
		messages:  messages,
		streams:   streams,
		txManager: txManager,
		broker:    b,
		provider:  p,
		pricing:   pricing,
		opts:      opts,
		logger:    logger,
	}
}

// loadOwnedChat fetches a chat and enforces ownership. Used by the
// mutating operations; read paths go through loadVisibleChat instead.
func (s *Service) loadOwnedChat(ctx context.Context, chatID, userID string) (*chatModels.Chat, error) {
	c, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domainNotFound("chat " + chatID)
	}
	if c.UserID != userID {
		return nil, domainForbidden("chat " + chatID)
	}
	return c, nil
}

// loadVisibleChat fetches a chat and enforces read visibility: the
// owner always sees it, everyone else only when it is public.
func (s *Service) loadVisibleChat(ctx context.Context, chatID, userID string) (*chatModels.Chat, error) {
	c, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domainNotFound("chat " + chatID)
	}
	if !c.IsVisibleTo(userID) {
		return nil, domainForbidden("chat " + chatID)
	}
	return c, nil
}
