package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"confluence/internal/domain/models/chat"
)

// StaticProvider replays scripted deltas. Used for testing and local
// development without real API keys.
type StaticProvider struct {
	// Deltas are emitted in order on every Stream call. When empty,
	// Stream splits Reply into word-sized text deltas instead.
	Deltas []Delta

	// Reply is the full response text. Complete returns it verbatim.
	Reply string

	// Usage is reported in the final Result.
	Usage chat.Usage

	// Err, when set, is returned after all deltas have been emitted.
	Err error

	// Delay, when positive, is the pause between deltas.
	Delay time.Duration

	mu       sync.Mutex
	requests []Request
}

func (p *StaticProvider) Name() string {
	return "static"
}

func (p *StaticProvider) Stream(ctx context.Context, req Request, fn func(Delta) error) (*Result, error) {
	p.record(req)

	deltas := p.Deltas
	if len(deltas) == 0 {
		for _, word := range strings.Fields(p.Reply) {
			deltas = append(deltas, Delta{Kind: DeltaText, Text: word + " "})
		}
	}
	for _, d := range deltas {
		if p.Delay > 0 {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fn(d); err != nil {
			return nil, err
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return &Result{Usage: p.Usage, FinishReason: "stop"}, nil
}

func (p *StaticProvider) Complete(ctx context.Context, req Request) (string, error) {
	p.record(req)
	if p.Err != nil {
		return "", p.Err
	}
	return p.Reply, nil
}

// Requests returns a copy of every request seen so far.
func (p *StaticProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *StaticProvider) record(req Request) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
}
