// Package broker decouples generation progress from client connection
// lifetime. A producer publishes one turn's serialized event frames under a
// stream id; any number of consumers attach at any time and replay the full
// sequence from the first frame, then follow live output until the terminal
// marker. Buffered output of finished streams is retained for a bounded
// window, after which attaching reports ErrNoSuchStream and callers fall
// back to a synthesized catch-up response.
package broker

import (
	"context"
	"errors"
)

var (
	// ErrDisabled is returned by Attach when no durable channel is
	// configured. Callers must treat this as a normal runtime state.
	ErrDisabled = errors.New("resumable streams disabled")

	// ErrNoSuchStream is returned by Attach when the stream id was never
	// published or its buffered output has expired.
	ErrNoSuchStream = errors.New("no such stream")

	// ErrStreamExists is returned by Publish on a duplicate stream id.
	// At most one producer may publish a given id; hitting this is a logic
	// error in the caller.
	ErrStreamExists = errors.New("stream already has a producer")
)

// Publisher is the producer side of one stream. Append and Close are called
// from a single goroutine (the turn that owns the stream).
type Publisher interface {
	// Append publishes one serialized frame.
	Append(ctx context.Context, frame string) error

	// Close appends the terminal marker so no attached consumer hangs,
	// then bounds the stream's retention. cause is non-nil when the
	// producer failed mid-stream; it is logged, never swallowed.
	Close(ctx context.Context, cause error) error
}

// Broker publishes and replays per-stream frame sequences.
type Broker interface {
	// Enabled reports whether a durable channel is configured.
	Enabled() bool

	// Publish binds streamID to a new producer.
	Publish(ctx context.Context, streamID string) (Publisher, error)

	// Attach returns a channel replaying the stream's frames from the
	// beginning, then following live frames until the terminal marker,
	// at which point the channel is closed. The channel is also closed
	// when ctx is cancelled.
	Attach(ctx context.Context, streamID string) (<-chan string, error)
}
