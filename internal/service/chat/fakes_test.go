package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"confluence/internal/broker"
	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/domain/repositories"
)

// In-memory repository fakes. All are safe for concurrent use because
// turns finalize on background goroutines.

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[string]*chatModels.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*chatModels.Chat)}
}

func (r *fakeChatRepo) CreateChat(ctx context.Context, c *chatModels.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.chats[c.ID] = &cp
	return nil
}

func (r *fakeChatRepo) GetChat(ctx context.Context, chatID string) (*chatModels.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChatRepo) ListChatsByUser(ctx context.Context, userID string, limit int, endingBefore string) ([]chatModels.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chatModels.Chat
	for _, c := range r.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if endingBefore != "" {
		for i, c := range out {
			if c.ID == endingBefore {
				out = out[i+1:]
				break
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChatRepo) UpdateTitle(ctx context.Context, chatID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[chatID]; ok {
		c.Title = title
	}
	return nil
}

func (r *fakeChatRepo) UpdateVisibility(ctx context.Context, chatID, visibility string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[chatID]; ok {
		c.Visibility = visibility
	}
	return nil
}

func (r *fakeChatRepo) UpdateLastContext(ctx context.Context, chatID string, snapshot map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[chatID]; ok {
		c.LastContext = snapshot
	}
	return nil
}

func (r *fakeChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, chatID)
	return nil
}

func (r *fakeChatRepo) title(chatID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.chats[chatID]; ok {
		return c.Title
	}
	return ""
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []chatModels.Message
}

func (r *fakeMessageRepo) CreateMessage(ctx context.Context, m *chatModels.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *m)
	return nil
}

func (r *fakeMessageRepo) ListMessagesByChat(ctx context.Context, chatID string) ([]chatModels.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chatModels.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) LatestMessage(ctx context.Context, chatID string) (*chatModels.Message, error) {
	msgs, _ := r.ListMessagesByChat(ctx, chatID)
	if len(msgs) == 0 {
		return nil, nil
	}
	m := msgs[len(msgs)-1]
	return &m, nil
}

func (r *fakeMessageRepo) DeleteMessagesFrom(ctx context.Context, chatID string, from time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ChatID == chatID && !m.CreatedAt.Before(from) {
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return nil
}

func (r *fakeMessageRepo) DeleteMessagesByChat(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.ChatID != chatID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	return nil
}

type fakeStreamRepo struct {
	mu      sync.Mutex
	records []chatModels.StreamRecord
}

func (r *fakeStreamRepo) RecordStream(ctx context.Context, rec *chatModels.StreamRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeStreamRepo) LatestStreamID(ctx context.Context, chatID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := ""
	var latestAt time.Time
	for _, rec := range r.records {
		if rec.ChatID == chatID && !rec.CreatedAt.Before(latestAt) {
			latest = rec.StreamID
			latestAt = rec.CreatedAt
		}
	}
	return latest, nil
}

func (r *fakeStreamRepo) DeleteStreamsByChat(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.ChatID != chatID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

type fakeTxManager struct{}

func (fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// memBroker is an in-process Broker with full-replay semantics, mirroring
// the Redis implementation closely enough for service-level tests.
type memBroker struct {
	mu      sync.Mutex
	streams map[string]*memStream
}

type memStream struct {
	frames []string
	closed bool
	subs   []chan string
}

func newMemBroker() *memBroker {
	return &memBroker{streams: make(map[string]*memStream)}
}

func (b *memBroker) Enabled() bool { return true }

func (b *memBroker) Publish(ctx context.Context, streamID string) (broker.Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[streamID]; ok {
		return nil, broker.ErrStreamExists
	}
	b.streams[streamID] = &memStream{}
	return &memPublisher{broker: b, streamID: streamID}, nil
}

func (b *memBroker) Attach(ctx context.Context, streamID string) (<-chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[streamID]
	if !ok {
		return nil, broker.ErrNoSuchStream
	}
	out := make(chan string, len(s.frames)+256)
	for _, f := range s.frames {
		out <- f
	}
	if s.closed {
		close(out)
	} else {
		s.subs = append(s.subs, out)
	}
	return out, nil
}

// expire drops a stream, simulating retention running out.
func (b *memBroker) expire(streamID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, streamID)
}

func (b *memBroker) frames(streamID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[streamID]
	if !ok {
		return nil
	}
	out := make([]string, len(s.frames))
	copy(out, s.frames)
	return out
}

type memPublisher struct {
	broker   *memBroker
	streamID string
}

func (p *memPublisher) Append(ctx context.Context, frame string) error {
	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()
	s := p.broker.streams[p.streamID]
	s.frames = append(s.frames, frame)
	for _, sub := range s.subs {
		sub <- frame
	}
	return nil
}

func (p *memPublisher) Close(ctx context.Context, cause error) error {
	p.broker.mu.Lock()
	defer p.broker.mu.Unlock()
	s := p.broker.streams[p.streamID]
	if s.closed {
		return nil
	}
	s.closed = true
	for _, sub := range s.subs {
		close(sub)
	}
	s.subs = nil
	return nil
}
