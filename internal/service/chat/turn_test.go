package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/provider"
)

type fixture struct {
	service  *Service
	chats    *fakeChatRepo
	messages *fakeMessageRepo
	streams  *fakeStreamRepo
	broker   *memBroker
	provider *provider.StaticProvider
}

func newFixture(t *testing.T, p *provider.StaticProvider) *fixture {
	t.Helper()
	if p == nil {
		p = &provider.StaticProvider{
			Deltas: []provider.Delta{
				{Kind: provider.DeltaText, Text: "hello "},
				{Kind: provider.DeltaText, Text: "world"},
			},
			Reply: "Generated title",
			Usage: chatModels.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}
	}
	f := &fixture{
		chats:    newFakeChatRepo(),
		messages: &fakeMessageRepo{},
		streams:  &fakeStreamRepo{},
		broker:   newMemBroker(),
		provider: p,
	}
	pricing, err := provider.LoadPricing("")
	if err != nil {
		t.Fatal(err)
	}
	f.service = NewService(
		f.chats, f.messages, f.streams, fakeTxManager{}, f.broker, f.provider, pricing,
		Options{DefaultModel: "gpt-4o-mini", TitleModel: "gpt-4o-mini", ResumeFreshness: 15 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func userTurn(chatID, messageID, text string) *TurnRequest {
	return &TurnRequest{
		ChatID: chatID,
		UserID: "user-1",
		Message: &chatModels.Message{
			ID:    messageID,
			Role:  chatModels.RoleUser,
			Parts: []chatModels.Part{chatModels.TextPart(text)},
		},
	}
}

func collect(t *testing.T, frames <-chan string) []chatModels.StreamEvent {
	t.Helper()
	var events []chatModels.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return events
			}
			ev, err := chatModels.DecodeFrame(frame)
			if err != nil {
				t.Fatalf("decode frame %q: %v", frame, err)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
	}
}

func TestStartTurnStreamsAndFinalizes(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi there"))
	if err != nil {
		t.Fatalf("StartTurn error: %v", err)
	}
	events := collect(t, frames)

	if events[0].Type != chatModels.EventStart {
		t.Errorf("first event = %q, want start", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != chatModels.EventFinish {
		t.Errorf("last event = %q, want finish", last.Type)
	}

	var text string
	sawUsage := false
	for _, ev := range events {
		switch ev.Type {
		case chatModels.EventTextDelta:
			text += ev.Delta
		case chatModels.EventUsage:
			sawUsage = true
		}
	}
	if text != "hello world" {
		t.Errorf("streamed text = %q", text)
	}
	if !sawUsage {
		t.Error("no usage event emitted")
	}

	// Both messages persisted, user first.
	msgs, _ := f.messages.ListMessagesByChat(context.Background(), "chat-1")
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != chatModels.RoleUser || msgs[1].Role != chatModels.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if got := chatModels.JoinText(msgs[1].Parts); got != "hello world" {
		t.Errorf("assistant text = %q", got)
	}

	// Chat created with usage snapshot recorded.
	c, _ := f.chats.GetChat(context.Background(), "chat-1")
	if c == nil {
		t.Fatal("chat not created")
	}
	if c.LastContext == nil {
		t.Error("usage snapshot not recorded")
	}

	// A stream was recorded and the broker holds the same frame sequence.
	streamID, _ := f.streams.LatestStreamID(context.Background(), "chat-1")
	if streamID == "" {
		t.Fatal("no stream recorded in ledger")
	}
	brokerFrames := f.broker.frames(streamID)
	if len(brokerFrames) != len(events) {
		t.Errorf("broker has %d frames, direct stream had %d", len(brokerFrames), len(events))
	}
}

func TestStartTurnDerivesTitle(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "explain quicksort"))
	if err != nil {
		t.Fatalf("StartTurn error: %v", err)
	}
	collect(t, frames)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.chats.title("chat-1") == "Generated title" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("title = %q, want derived title", f.chats.title("chat-1"))
}

func TestStartTurnForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t, nil)
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "someone-else", Visibility: chatModels.VisibilityPrivate,
	})

	_, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi"))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestStartTurnValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		req  *TurnRequest
	}{
		{"missing message", &TurnRequest{ChatID: "c", UserID: "u"}},
		{"assistant role", &TurnRequest{ChatID: "c", UserID: "u", Message: &chatModels.Message{
			ID: "m", Role: chatModels.RoleAssistant, Parts: []chatModels.Part{chatModels.TextPart("x")},
		}}},
		{"no parts", &TurnRequest{ChatID: "c", UserID: "u", Message: &chatModels.Message{
			ID: "m", Role: chatModels.RoleUser,
		}}},
		{"bad visibility", &TurnRequest{ChatID: "c", UserID: "u", Visibility: "secret", Message: &chatModels.Message{
			ID: "m", Role: chatModels.RoleUser, Parts: []chatModels.Part{chatModels.TextPart("x")},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.StartTurn(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestStartTurnProviderFailure(t *testing.T) {
	f := newFixture(t, &provider.StaticProvider{
		Deltas: []provider.Delta{{Kind: provider.DeltaText, Text: "partial"}},
		Err:    domain.NewChatError(domain.CodeRateLimit, domain.SurfaceProvider, "429"),
	})

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi"))
	if err != nil {
		t.Fatalf("StartTurn error: %v", err)
	}
	events := collect(t, frames)

	var sawError bool
	for _, ev := range events {
		if ev.Type == chatModels.EventError {
			sawError = true
			if ev.Code != string(domain.CodeRateLimit) {
				t.Errorf("error code = %q, want rate_limit", ev.Code)
			}
		}
	}
	if !sawError {
		t.Fatal("no error event on stream")
	}
	if events[len(events)-1].Type != chatModels.EventFinish {
		t.Error("stream did not terminate with done frame")
	}

	// Partial assistant output is not persisted.
	msgs, _ := f.messages.ListMessagesByChat(context.Background(), "chat-1")
	if len(msgs) != 1 || msgs[0].Role != chatModels.RoleUser {
		t.Errorf("persisted messages = %+v, want only the user message", msgs)
	}
}

func TestStartTurnResubmitReplacesTrailing(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "first question"))
	if err != nil {
		t.Fatal(err)
	}
	collect(t, frames)

	// Resubmitting msg-1 (an edit) replaces it and the assistant reply.
	frames, err = f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "edited question"))
	if err != nil {
		t.Fatal(err)
	}
	collect(t, frames)

	msgs, _ := f.messages.ListMessagesByChat(context.Background(), "chat-1")
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if got := chatModels.JoinText(msgs[0].Parts); got != "edited question" {
		t.Errorf("user message = %q, want edited text", got)
	}

	// The provider never saw the replaced history: every request carried
	// a single message (title requests included).
	for _, req := range f.provider.Requests() {
		if len(req.Messages) != 1 {
			t.Errorf("provider request carried %d messages, want 1", len(req.Messages))
		}
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	collect(t, frames)

	deleted, err := f.service.Delete(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if deleted.ID != "chat-1" {
		t.Errorf("deleted.ID = %q", deleted.ID)
	}

	if c, _ := f.chats.GetChat(context.Background(), "chat-1"); c != nil {
		t.Error("chat still present")
	}
	if msgs, _ := f.messages.ListMessagesByChat(context.Background(), "chat-1"); len(msgs) != 0 {
		t.Error("messages still present")
	}
	if id, _ := f.streams.LatestStreamID(context.Background(), "chat-1"); id != "" {
		t.Error("stream records still present")
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	f := newFixture(t, nil)
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "someone-else", Visibility: chatModels.VisibilityPublic,
	})

	if _, err := f.service.Delete(context.Background(), "chat-1", "user-1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
	if _, err := f.service.Delete(context.Background(), "nope", "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestMessagesVisibility(t *testing.T) {
	f := newFixture(t, nil)
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "private-chat", UserID: "owner", Visibility: chatModels.VisibilityPrivate,
	})
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "public-chat", UserID: "owner", Visibility: chatModels.VisibilityPublic,
	})

	if _, err := f.service.Messages(context.Background(), "private-chat", "stranger"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("private chat err = %v, want forbidden", err)
	}
	if _, err := f.service.Messages(context.Background(), "private-chat", "owner"); err != nil {
		t.Errorf("owner read err = %v", err)
	}
	if _, err := f.service.Messages(context.Background(), "public-chat", "stranger"); err != nil {
		t.Errorf("public chat err = %v", err)
	}
}

func TestHistoryPagination(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Now()
	for i := 0; i < 5; i++ {
		f.chats.CreateChat(context.Background(), &chatModels.Chat{
			ID: string(rune('a' + i)), UserID: "user-1",
			Visibility: chatModels.VisibilityPrivate,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}

	page, err := f.service.History(context.Background(), "user-1", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 3 || !page.HasMore {
		t.Errorf("page = %d chats, hasMore=%v; want 3, true", len(page.Chats), page.HasMore)
	}
	if page.Chats[0].ID != "e" {
		t.Errorf("first chat = %q, want newest", page.Chats[0].ID)
	}

	page, err = f.service.History(context.Background(), "user-1", 3, page.Chats[2].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 2 || page.HasMore {
		t.Errorf("second page = %d chats, hasMore=%v; want 2, false", len(page.Chats), page.HasMore)
	}
}
