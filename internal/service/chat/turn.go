package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"confluence/internal/broker"
	"confluence/internal/config"
	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/provider"
)

const titlePrompt = `You will generate a short title based on the first message a user begins a conversation with.
Ensure it is not more than 80 characters long.
The title should be a summary of the user's message.
Do not use quotes or colons.`

// StartTurn validates and persists the inbound user message, records a
// new stream in the ledger, and begins generation. The returned channel
// yields serialized event frames and closes after the terminal frame.
//
// Generation is detached from ctx: once StartTurn returns, the turn runs
// to completion and is finalized in the database even if the caller
// disconnects. ctx only governs delivery on the returned channel.
func (s *Service) StartTurn(ctx context.Context, req *TurnRequest) (<-chan string, error) {
	if err := s.validateTurnRequest(req); err != nil {
		return nil, err
	}

	model := req.SelectedModel
	if model == "" {
		model = s.opts.DefaultModel
	}

	c, err := s.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	created := c == nil
	if created {
		c, err = s.createChat(ctx, req, model)
		if err != nil {
			return nil, err
		}
	} else if c.UserID != req.UserID {
		return nil, domainForbidden("chat " + c.ID)
	}

	history, err := s.messages.ListMessagesByChat(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	// A resubmitted message id means the user edited an earlier message;
	// everything from that point forward is replaced by this turn.
	for i := range history {
		if history[i].ID == req.Message.ID {
			if err := s.messages.DeleteMessagesFrom(ctx, c.ID, history[i].CreatedAt); err != nil {
				return nil, err
			}
			history = history[:i]
			break
		}
	}

	inbound := &chatModels.Message{
		ID:        req.Message.ID,
		ChatID:    c.ID,
		Role:      chatModels.RoleUser,
		Parts:     req.Message.Parts,
		CreatedAt: time.Now(),
	}
	if err := s.messages.CreateMessage(ctx, inbound); err != nil {
		return nil, err
	}
	history = append(history, *inbound)

	streamID := uuid.NewString()
	if err := s.streams.RecordStream(ctx, &chatModels.StreamRecord{
		ID:        uuid.NewString(),
		StreamID:  streamID,
		ChatID:    c.ID,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	var pub broker.Publisher
	if s.broker.Enabled() {
		pub, err = s.broker.Publish(ctx, streamID)
		if err != nil {
			// Resumption degrades; the turn itself proceeds.
			s.logger.Warn("stream publish failed, continuing without resumption",
				"stream_id", streamID, "error", err)
			pub = nil
		}
	}

	out := make(chan string, 32)
	genCtx := context.WithoutCancel(ctx)
	go s.runTurn(genCtx, &turnState{
		chat:     c,
		model:    model,
		history:  history,
		streamID: streamID,
		emitter: &frameEmitter{
			out:        out,
			clientDone: ctx.Done(),
			pub:        pub,
			ctx:        genCtx,
			logger:     s.logger,
		},
	})

	if created {
		go s.deriveTitle(genCtx, c.ID, chatModels.JoinText(req.Message.Parts))
	}

	return out, nil
}

func (s *Service) createChat(ctx context.Context, req *TurnRequest, model string) (*chatModels.Chat, error) {
	visibility := req.Visibility
	if visibility == "" {
		visibility = chatModels.VisibilityPrivate
	}
	now := time.Now()
	c := &chatModels.Chat{
		ID:              req.ChatID,
		UserID:          req.UserID,
		Title:           provisionalTitle(chatModels.JoinText(req.Message.Parts)),
		Visibility:      visibility,
		SelectedModelID: &model,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.chats.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("chat created", "id", c.ID, "user_id", c.UserID, "visibility", c.Visibility)
	return c, nil
}

type turnState struct {
	chat     *chatModels.Chat
	model    string
	history  []chatModels.Message
	streamID string
	emitter  *frameEmitter
}

// runTurn streams the model response, finalizes the assistant message,
// and always delivers a terminal frame before closing the channel.
func (s *Service) runTurn(ctx context.Context, t *turnState) {
	e := t.emitter
	defer e.finish()

	assistantID := uuid.NewString()
	e.emitEvent(chatModels.NewStartFrame(assistantID))

	messages := make([]*chatModels.Message, len(t.history))
	for i := range t.history {
		messages[i] = &t.history[i]
	}

	var text, reasoning strings.Builder
	result, err := s.provider.Stream(ctx, provider.Request{
		Model:    t.model,
		Messages: messages,
	}, func(d provider.Delta) error {
		switch d.Kind {
		case provider.DeltaReasoning:
			reasoning.WriteString(d.Text)
			e.emitEvent(chatModels.NewReasoningDeltaFrame(d.Text))
		default:
			text.WriteString(d.Text)
			e.emitEvent(chatModels.NewTextDeltaFrame(d.Text))
		}
		return nil
	})
	if err != nil {
		s.failTurn(t, err)
		return
	}

	var parts []chatModels.Part
	if reasoning.Len() > 0 {
		parts = append(parts, chatModels.ReasoningPart(reasoning.String()))
	}
	parts = append(parts, chatModels.TextPart(text.String()))

	assistant := &chatModels.Message{
		ID:        assistantID,
		ChatID:    t.chat.ID,
		Role:      chatModels.RoleAssistant,
		Parts:     parts,
		CreatedAt: time.Now(),
	}
	if err := s.messages.CreateMessage(ctx, assistant); err != nil {
		s.failTurn(t, err)
		return
	}

	var cost *float64
	if s.pricing != nil {
		if usd, ok := s.pricing.Cost(t.model, result.Usage); ok {
			cost = &usd
		}
	}
	snapshot := chatModels.UsageSnapshot(t.model, result.Usage, cost)
	if err := s.chats.UpdateLastContext(ctx, t.chat.ID, snapshot); err != nil {
		s.logger.Warn("usage snapshot update failed", "chat_id", t.chat.ID, "error", err)
	}

	e.emitEvent(chatModels.NewUsageFrame(snapshot))
	e.emitEvent(chatModels.NewFinishFrame())

	s.logger.Info("turn completed",
		"chat_id", t.chat.ID,
		"stream_id", t.streamID,
		"model", t.model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
	)
}

// failTurn reports the failure on the stream. Text already streamed is
// not persisted; the client retries the whole turn.
func (s *Service) failTurn(t *turnState, err error) {
	code, message := domain.CodeOffline, ""
	var chatErr *domain.ChatError
	if errors.As(err, &chatErr) {
		code = chatErr.Code
		message = chatErr.Message
	} else {
		message = "Generation failed. Please try again."
	}
	s.logger.Error("turn failed",
		"chat_id", t.chat.ID,
		"stream_id", t.streamID,
		"model", t.model,
		"error", err,
	)
	t.emitter.fail(err)
	t.emitter.emitEvent(chatModels.NewErrorFrame(string(code), message))
}

// deriveTitle replaces the provisional chat title with one generated
// from the first user message. Failures keep the provisional title.
func (s *Service) deriveTitle(ctx context.Context, chatID, userText string) {
	if userText == "" {
		return
	}
	title, err := s.provider.Complete(ctx, provider.Request{
		Model:  s.opts.TitleModel,
		System: titlePrompt,
		Messages: []*chatModels.Message{{
			Role:  chatModels.RoleUser,
			Parts: []chatModels.Part{chatModels.TextPart(userText)},
		}},
	})
	if err != nil {
		s.logger.Warn("title derivation failed", "chat_id", chatID, "error", err)
		return
	}
	title = provisionalTitle(title)
	if title == "" {
		return
	}
	if err := s.chats.UpdateTitle(ctx, chatID, title); err != nil {
		s.logger.Warn("title update failed", "chat_id", chatID, "error", err)
	}
}

// provisionalTitle normalizes free text into a usable title.
func provisionalTitle(text string) string {
	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"'`))
	if title == "" {
		return "New chat"
	}
	if len(title) > config.MaxChatTitleLength {
		title = title[:config.MaxChatTitleLength]
	}
	if idx := strings.IndexByte(title, '\n'); idx > 0 {
		title = title[:idx]
	}
	return title
}

// frameEmitter fans one frame sequence out to the direct response
// channel and the broker. The broker copy is best-effort once publishing
// has failed; the direct copy stops when the client goes away.
type frameEmitter struct {
	out        chan string
	clientDone <-chan struct{}
	clientGone bool
	pub        broker.Publisher
	ctx        context.Context
	cause      error
	logger     *slog.Logger
}

func (e *frameEmitter) emitEvent(frame string, err error) {
	if err != nil {
		e.logger.Warn("frame encode failed", "error", err)
		return
	}
	e.emit(frame)
}

func (e *frameEmitter) emit(frame string) {
	if e.pub != nil {
		if err := e.pub.Append(e.ctx, frame); err != nil {
			e.logger.Warn("stream append failed, continuing without resumption", "error", err)
			e.pub = nil
		}
	}
	if e.clientGone {
		return
	}
	select {
	case e.out <- frame:
	case <-e.clientDone:
		e.clientGone = true
	}
}

func (e *frameEmitter) fail(err error) {
	e.cause = err
}

// finish delivers the terminal frame, closes the broker stream, and
// closes the direct channel. Runs exactly once per turn.
func (e *frameEmitter) finish() {
	e.emit(chatModels.DoneFrame)
	if e.pub != nil {
		if err := e.pub.Close(e.ctx, e.cause); err != nil {
			e.logger.Warn("stream close failed", "error", err)
		}
	}
	close(e.out)
}
