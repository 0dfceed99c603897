// Package provider abstracts the upstream model APIs that generate
// assistant turns. Adapters translate provider-specific wire formats
// into a small delta vocabulary the orchestrator streams to clients.
package provider

import (
	"context"

	"confluence/internal/domain/models/chat"
)

// DeltaKind discriminates the incremental output types a model can emit.
type DeltaKind string

const (
	DeltaText      DeltaKind = "text"
	DeltaReasoning DeltaKind = "reasoning"
)

// Delta is one incremental chunk of model output.
type Delta struct {
	Kind DeltaKind
	Text string
}

// Request contains the parameters for a generation request.
type Request struct {
	// Model is the model identifier (e.g., "gpt-4o-mini")
	Model string

	// System is an optional system prompt prepended to the conversation.
	System string

	// Messages contains the conversation history, oldest first.
	Messages []*chat.Message
}

// Result is returned once a streamed generation completes.
type Result struct {
	Usage        chat.Usage
	FinishReason string
}

// Provider defines the interface that all model providers must implement.
// This abstraction allows supporting multiple upstream APIs while keeping
// the turn orchestrator provider-agnostic.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "static")
	Name() string

	// Stream generates a response, invoking fn for each delta as it
	// arrives. fn returning an error aborts the generation and Stream
	// returns that error. The Result is nil whenever the error is non-nil.
	Stream(ctx context.Context, req Request, fn func(Delta) error) (*Result, error)

	// Complete generates a short non-streamed response. Used for
	// auxiliary calls like title derivation.
	Complete(ctx context.Context, req Request) (string, error)
}
