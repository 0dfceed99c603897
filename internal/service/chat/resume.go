package chat

import (
	"context"
	"errors"
	"time"

	"confluence/internal/broker"
	chatModels "confluence/internal/domain/models/chat"
)

// ErrResumeUnavailable is returned by Resume when no durable stream
// channel is configured. Handlers translate it to 204 No Content.
var ErrResumeUnavailable = errors.New("stream resumption unavailable")

// Resume reconnects a client to the chat's most recent generation
// stream. The returned channel replays the stream's frames from the
// beginning and follows live output until the terminal frame.
//
// When the stream's buffered output has already expired, Resume
// synthesizes a catch-up stream instead: the chat's latest message when
// it is a freshly finished assistant turn, otherwise just the terminal
// frame. An empty stream tells the client nothing is in flight.
func (s *Service) Resume(ctx context.Context, chatID, userID string) (<-chan string, error) {
	if !s.broker.Enabled() {
		return nil, ErrResumeUnavailable
	}

	c, err := s.loadVisibleChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	streamID, err := s.streams.LatestStreamID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if streamID == "" {
		return s.emptyStream(), nil
	}

	frames, err := s.broker.Attach(ctx, streamID)
	if err == nil {
		s.logger.Info("stream resumed", "chat_id", c.ID, "stream_id", streamID)
		return frames, nil
	}
	if !errors.Is(err, broker.ErrNoSuchStream) {
		return nil, err
	}

	return s.catchUpStream(ctx, c.ID)
}

// catchUpStream covers the gap between stream expiry and a client that
// reconnected late: if the last turn finished moments ago, deliver its
// assistant message whole so the client is not left with a blank turn.
func (s *Service) catchUpStream(ctx context.Context, chatID string) (<-chan string, error) {
	latest, err := s.messages.LatestMessage(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Role != chatModels.RoleAssistant ||
		time.Since(latest.CreatedAt) > s.opts.ResumeFreshness {
		return s.emptyStream(), nil
	}

	frame, err := chatModels.NewAppendMessageFrame(latest)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stream expired, delivering catch-up message",
		"chat_id", chatID, "message_id", latest.ID)
	return s.prefilledStream(frame), nil
}

// emptyStream is a terminal-only stream: connect, [DONE], close.
func (s *Service) emptyStream() <-chan string {
	return s.prefilledStream()
}

func (s *Service) prefilledStream(frames ...string) <-chan string {
	out := make(chan string, len(frames)+1)
	for _, f := range frames {
		out <- f
	}
	out <- chatModels.DoneFrame
	close(out)
	return out
}
