package chat

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeFrame(t *testing.T) {
	tests := []struct {
		name string
		ev   StreamEvent
	}{
		{"start", StreamEvent{Type: EventStart, MessageID: "msg-1"}},
		{"text delta", StreamEvent{Type: EventTextDelta, Delta: "hello"}},
		{"reasoning delta", StreamEvent{Type: EventReasoningDelta, Delta: "hmm"}},
		{"error", StreamEvent{Type: EventError, Code: "rate_limit", Message: "slow down"}},
		{"finish", StreamEvent{Type: EventFinish}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeFrame(tt.ev)
			if err != nil {
				t.Fatalf("encode error: %v", err)
			}
			if !strings.HasPrefix(frame, "data: ") || !strings.HasSuffix(frame, "\n\n") {
				t.Errorf("frame not SSE formatted: %q", frame)
			}

			got, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.ev) {
				t.Errorf("got %+v, want %+v", got, tt.ev)
			}
		})
	}
}

func TestDecodeDoneFrame(t *testing.T) {
	ev, err := DecodeFrame(DoneFrame)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != EventFinish {
		t.Errorf("type = %q, want finish", ev.Type)
	}
}

func TestDecodeFrameRejectsNonDataLines(t *testing.T) {
	if _, err := DecodeFrame(": keepalive\n\n"); err == nil {
		t.Error("expected error for comment line")
	}
	if _, err := DecodeFrame("event: message\n\n"); err == nil {
		t.Error("expected error for event line")
	}
}

func TestAppendMessageFrame(t *testing.T) {
	msg := &Message{
		ID:        "m1",
		ChatID:    "c1",
		Role:      RoleAssistant,
		Parts:     []Part{TextPart("done already")},
		CreatedAt: time.Now(),
	}
	frame, err := NewAppendMessageFrame(msg)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	ev, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if ev.Type != EventAppendMessage {
		t.Errorf("type = %q, want %q", ev.Type, EventAppendMessage)
	}
	if !strings.Contains(string(ev.Data), "done already") {
		t.Errorf("data missing message text: %s", ev.Data)
	}
}
