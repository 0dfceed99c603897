package broker

import (
	"context"
)

// DisabledBroker is the typed "unavailable" variant used when no durable
// channel is configured. Publishing is a no-op so turns still stream to the
// directly-connected client; attaching reports ErrDisabled so the resume
// endpoint can answer 204.
type DisabledBroker struct{}

// NewDisabled returns the disabled broker.
func NewDisabled() *DisabledBroker { return &DisabledBroker{} }

// Enabled reports whether a durable channel is configured.
func (*DisabledBroker) Enabled() bool { return false }

// Publish returns a publisher that drops every frame.
func (*DisabledBroker) Publish(ctx context.Context, streamID string) (Publisher, error) {
	return noopPublisher{}, nil
}

// Attach always reports ErrDisabled.
func (*DisabledBroker) Attach(ctx context.Context, streamID string) (<-chan string, error) {
	return nil, ErrDisabled
}

type noopPublisher struct{}

func (noopPublisher) Append(ctx context.Context, frame string) error { return nil }
func (noopPublisher) Close(ctx context.Context, cause error) error   { return nil }
