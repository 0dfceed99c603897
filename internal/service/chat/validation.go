package chat

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"confluence/internal/config"
	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
)

// TurnRequest is a validated request to run one generation turn.
type TurnRequest struct {
	// ChatID identifies the conversation. A chat is created on first use.
	ChatID string

	// UserID is the authenticated caller.
	UserID string

	// Message is the inbound user message, id supplied by the client.
	Message *chatModels.Message

	// SelectedModel overrides the default model when non-empty.
	SelectedModel string

	// Visibility applies when the turn creates the chat.
	Visibility string
}

func (s *Service) validateTurnRequest(req *TurnRequest) error {
	err := validation.Errors{
		"id":      validation.Validate(req.ChatID, validation.Required),
		"message": validation.Validate(req.Message, validation.Required),
	}.Filter()
	if err == nil && req.Message != nil {
		err = validation.Errors{
			"message.id": validation.Validate(req.Message.ID, validation.Required),
			"message.role": validation.Validate(req.Message.Role,
				validation.Required, validation.In(chatModels.RoleUser)),
			"message.parts": validation.Validate(req.Message.Parts,
				validation.Required, validation.Length(1, config.MaxMessageParts)),
		}.Filter()
	}
	if err == nil && req.Visibility != "" && !chatModels.ValidVisibility(req.Visibility) {
		err = fmt.Errorf("visibility: must be public or private")
	}
	if err != nil {
		return domain.NewChatError(domain.CodeBadRequest, domain.SurfaceAPI, err.Error())
	}
	return nil
}

func domainNotFound(cause string) error {
	return domain.NewChatError(domain.CodeNotFound, domain.SurfaceChat, cause)
}

func domainForbidden(cause string) error {
	return domain.NewChatError(domain.CodeForbidden, domain.SurfaceChat, cause)
}
