package chat

import (
	"encoding/json"
	"fmt"
)

// Stream event type constants
const (
	EventStart          = "start"              // generation began for a message
	EventTextDelta      = "text-delta"         // incremental text output
	EventReasoningDelta = "reasoning-delta"    // incremental reasoning output
	EventAppendMessage  = "data-appendMessage" // catch-up: deliver an already-complete message
	EventUsage          = "data-usage"         // usage snapshot for the turn
	EventError          = "error"              // generation failed
	EventFinish         = "finish"             // terminal marker, always last
)

// DoneFrame terminates every event stream, successful or not.
const DoneFrame = "data: [DONE]\n\n"

// StreamEvent is one JSON-encoded event on the chat wire. Events are
// serialized exactly once into SSE frames; the frame written to the direct
// HTTP response is the same byte sequence published to the broker.
type StreamEvent struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// EncodeFrame serializes an event into a single SSE frame:
//
//	data: {"type":"text-delta","delta":"..."}
func EncodeFrame(ev StreamEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode stream event: %w", err)
	}
	return fmt.Sprintf("data: %s\n\n", payload), nil
}

// DecodeFrame parses a frame produced by EncodeFrame. The terminal done
// frame decodes to a finish-typed event.
func DecodeFrame(frame string) (StreamEvent, error) {
	var ev StreamEvent
	payload, ok := framePayload(frame)
	if !ok {
		return ev, fmt.Errorf("decode frame: not an SSE data frame")
	}
	if payload == "[DONE]" {
		return StreamEvent{Type: EventFinish}, nil
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, fmt.Errorf("decode frame: %w", err)
	}
	return ev, nil
}

func framePayload(frame string) (string, bool) {
	const prefix = "data: "
	if len(frame) < len(prefix) || frame[:len(prefix)] != prefix {
		return "", false
	}
	payload := frame[len(prefix):]
	for len(payload) > 0 && payload[len(payload)-1] == '\n' {
		payload = payload[:len(payload)-1]
	}
	return payload, true
}

// Helper constructors for common frames

// NewStartFrame signals generation has begun for the assistant message.
func NewStartFrame(messageID string) (string, error) {
	return EncodeFrame(StreamEvent{Type: EventStart, MessageID: messageID})
}

// NewTextDeltaFrame carries an incremental text fragment.
func NewTextDeltaFrame(delta string) (string, error) {
	return EncodeFrame(StreamEvent{Type: EventTextDelta, Delta: delta})
}

// NewReasoningDeltaFrame carries an incremental reasoning fragment.
func NewReasoningDeltaFrame(delta string) (string, error) {
	return EncodeFrame(StreamEvent{Type: EventReasoningDelta, Delta: delta})
}

// NewAppendMessageFrame synthesizes a catch-up event delivering a complete
// message to a late-attaching consumer.
func NewAppendMessageFrame(msg *Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode append-message data: %w", err)
	}
	return EncodeFrame(StreamEvent{Type: EventAppendMessage, Data: data})
}

// NewUsageFrame carries the merged usage snapshot for the turn.
func NewUsageFrame(snapshot map[string]any) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode usage data: %w", err)
	}
	return EncodeFrame(StreamEvent{Type: EventUsage, Data: data})
}

// NewErrorFrame carries a structured failure; the raw cause is never
// written to the wire.
func NewErrorFrame(code, message string) (string, error) {
	return EncodeFrame(StreamEvent{Type: EventError, Code: code, Message: message})
}

// NewFinishFrame signals successful end of generation ahead of DoneFrame.
func NewFinishFrame() (string, error) {
	return EncodeFrame(StreamEvent{Type: EventFinish})
}
