package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"confluence/internal/broker"
	"confluence/internal/domain"
	chatModels "confluence/internal/domain/models/chat"
)

func TestResumeUnavailableWithoutBroker(t *testing.T) {
	f := newFixture(t, nil)
	f.service.broker = broker.NewDisabled()

	_, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if !errors.Is(err, ErrResumeUnavailable) {
		t.Errorf("err = %v, want ErrResumeUnavailable", err)
	}
}

func TestResumeUnknownChat(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Resume(context.Background(), "nope", "user-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestResumeForbiddenOnPrivateChat(t *testing.T) {
	f := newFixture(t, nil)
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "owner", Visibility: chatModels.VisibilityPrivate,
	})

	_, err := f.service.Resume(context.Background(), "chat-1", "stranger")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
}

func TestResumeEmptyWithoutLedgerRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "user-1", Visibility: chatModels.VisibilityPrivate,
	})

	frames, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	events := collect(t, frames)
	if len(events) != 1 || events[0].Type != chatModels.EventFinish {
		t.Errorf("events = %+v, want terminal frame only", events)
	}
}

func TestResumeReplaysLiveStream(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	direct := collect(t, frames)

	resumed, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	replay := collect(t, resumed)

	if len(replay) != len(direct) {
		t.Fatalf("replay delivered %d events, direct stream had %d", len(replay), len(direct))
	}
	if replay[0].Type != chatModels.EventStart {
		t.Errorf("replay starts with %q, want start", replay[0].Type)
	}
}

func TestResumeCatchUpAfterExpiry(t *testing.T) {
	f := newFixture(t, nil)

	frames, err := f.service.StartTurn(context.Background(), userTurn("chat-1", "msg-1", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	collect(t, frames)

	streamID, _ := f.streams.LatestStreamID(context.Background(), "chat-1")
	f.broker.expire(streamID)

	resumed, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	events := collect(t, resumed)

	if len(events) != 2 || events[0].Type != chatModels.EventAppendMessage {
		t.Fatalf("events = %+v, want append-message then terminal", events)
	}

	var msg chatModels.Message
	if err := json.Unmarshal(events[0].Data, &msg); err != nil {
		t.Fatalf("decode append-message: %v", err)
	}
	if msg.Role != chatModels.RoleAssistant {
		t.Errorf("catch-up role = %q, want assistant", msg.Role)
	}
}

func TestResumeCatchUpSkipsStaleTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.service.opts.ResumeFreshness = 15 * time.Second

	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "user-1", Visibility: chatModels.VisibilityPrivate,
	})
	f.streams.RecordStream(context.Background(), &chatModels.StreamRecord{
		ID: "r1", StreamID: "expired-stream", ChatID: "chat-1", CreatedAt: time.Now().Add(-time.Minute),
	})
	f.messages.CreateMessage(context.Background(), &chatModels.Message{
		ID: "m1", ChatID: "chat-1", Role: chatModels.RoleAssistant,
		Parts:     []chatModels.Part{chatModels.TextPart("old answer")},
		CreatedAt: time.Now().Add(-time.Minute),
	})

	resumed, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	events := collect(t, resumed)
	if len(events) != 1 || events[0].Type != chatModels.EventFinish {
		t.Errorf("events = %+v, want terminal frame only for stale turn", events)
	}
}

func TestResumeCatchUpSkipsUserMessage(t *testing.T) {
	f := newFixture(t, nil)

	f.chats.CreateChat(context.Background(), &chatModels.Chat{
		ID: "chat-1", UserID: "user-1", Visibility: chatModels.VisibilityPrivate,
	})
	f.streams.RecordStream(context.Background(), &chatModels.StreamRecord{
		ID: "r1", StreamID: "expired-stream", ChatID: "chat-1", CreatedAt: time.Now(),
	})
	f.messages.CreateMessage(context.Background(), &chatModels.Message{
		ID: "m1", ChatID: "chat-1", Role: chatModels.RoleUser,
		Parts:     []chatModels.Part{chatModels.TextPart("still waiting")},
		CreatedAt: time.Now(),
	})

	resumed, err := f.service.Resume(context.Background(), "chat-1", "user-1")
	if err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	events := collect(t, resumed)
	if len(events) != 1 || events[0].Type != chatModels.EventFinish {
		t.Errorf("events = %+v, want terminal frame only when last message is the user's", events)
	}
}
