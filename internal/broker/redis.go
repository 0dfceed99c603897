package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "confluence:stream:"

	// fields of one stream entry
	fieldFrame = "frame"
	fieldInit  = "init"
	fieldEnd   = "end"

	// activeTTL bounds how long an in-progress stream may live without the
	// producer appending; refreshed on every append. Generous so slow
	// generations never expire mid-stream.
	activeTTL = 10 * time.Minute

	// readBlock is how long one XREAD call blocks waiting for new frames.
	readBlock = 5 * time.Second
)

// RedisBroker implements Broker on Redis Streams. Frames are XADDed under a
// per-stream key; consumers XREAD from id 0 so replay is complete and
// ordered. Finished streams keep their buffer for the configured retention
// window, then expire.
type RedisBroker struct {
	client    *redis.Client
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRedisBroker creates a broker backed by the given Redis client.
// retention bounds how long a finished stream's buffer stays replayable.
func NewRedisBroker(client *redis.Client, retention time.Duration, logger *slog.Logger) (*RedisBroker, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBroker{
		client:    client,
		retention: retention,
		logger:    logger,
		active:    make(map[string]struct{}),
	}, nil
}

// Enabled reports whether a durable channel is configured.
func (b *RedisBroker) Enabled() bool { return true }

// Publish binds streamID to a new producer. The stream key is created
// immediately with an init entry, so a consumer that attaches before the
// first token finds the stream rather than ErrNoSuchStream.
func (b *RedisBroker) Publish(ctx context.Context, streamID string) (Publisher, error) {
	b.mu.Lock()
	if _, exists := b.active[streamID]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrStreamExists)
	}
	b.active[streamID] = struct{}{}
	b.mu.Unlock()

	key := keyPrefix + streamID
	pipe := b.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{fieldInit: "1"},
	})
	pipe.Expire(ctx, key, activeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		b.release(streamID)
		return nil, fmt.Errorf("open stream %s: %w", streamID, err)
	}

	b.logger.Debug("stream opened", "stream_id", streamID)

	return &redisPublisher{broker: b, streamID: streamID, key: key}, nil
}

// Attach returns a replay-from-start channel for streamID.
func (b *RedisBroker) Attach(ctx context.Context, streamID string) (<-chan string, error) {
	key := keyPrefix + streamID

	exists, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("check stream %s: %w", streamID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("stream %s: %w", streamID, ErrNoSuchStream)
	}

	frames := make(chan string, 32)
	go b.follow(ctx, key, streamID, frames)

	return frames, nil
}

// follow reads the stream from the beginning and forwards frames until the
// terminal marker, context cancellation, or stream expiry.
func (b *RedisBroker) follow(ctx context.Context, key, streamID string, frames chan<- string) {
	defer close(frames)

	lastID := "0"
	for {
		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, lastID},
			Count:   64,
			Block:   readBlock,
		}).Result()

		if err == redis.Nil {
			// No new frames within the block window. If the key expired the
			// terminal marker will never arrive; stop so the consumer
			// doesn't hang.
			exists, existsErr := b.client.Exists(ctx, key).Result()
			if existsErr != nil || exists == 0 {
				return
			}
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Warn("stream read failed", "stream_id", streamID, "error", err)
			}
			return
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID

				if _, ok := msg.Values[fieldEnd]; ok {
					return
				}
				if _, ok := msg.Values[fieldInit]; ok {
					continue
				}

				frame, ok := msg.Values[fieldFrame].(string)
				if !ok {
					b.logger.Warn("stream entry missing frame field", "stream_id", streamID, "entry_id", msg.ID)
					continue
				}

				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (b *RedisBroker) release(streamID string) {
	b.mu.Lock()
	delete(b.active, streamID)
	b.mu.Unlock()
}

// redisPublisher is the producer handle for one stream.
type redisPublisher struct {
	broker   *RedisBroker
	streamID string
	key      string
	closed   bool
}

// Append publishes one frame and refreshes the active TTL.
func (p *redisPublisher) Append(ctx context.Context, frame string) error {
	if p.closed {
		return fmt.Errorf("stream %s: publisher closed", p.streamID)
	}

	pipe := p.broker.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.key,
		Values: map[string]any{fieldFrame: frame},
	})
	pipe.Expire(ctx, p.key, activeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to stream %s: %w", p.streamID, err)
	}

	return nil
}

// Close appends the terminal marker and bounds retention. Always appends
// the marker, also on producer failure, so attached consumers terminate.
func (p *redisPublisher) Close(ctx context.Context, cause error) error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.broker.release(p.streamID)

	if cause != nil {
		p.broker.logger.Error("stream producer failed",
			"stream_id", p.streamID,
			"error", cause,
		)
	}

	pipe := p.broker.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.key,
		Values: map[string]any{fieldEnd: "1"},
	})
	pipe.Expire(ctx, p.key, p.broker.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("close stream %s: %w", p.streamID, err)
	}

	p.broker.logger.Debug("stream closed",
		"stream_id", p.streamID,
		"failed", cause != nil,
	)

	return nil
}
