package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "narrative:progress:"

// RedisBus fans progress frames out through Redis pub/sub instead of an
// in-process map, so multiple engine replicas can each serve SSE
// connections for the same world while only one of them is actually
// advancing it.
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBus constructs a RedisBus. The caller owns client's lifecycle.
func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, logger: logger}
}

func channelName(worldID string) string {
	return channelPrefix + worldID
}

// Subscribe implements Bus by wrapping a redis.PubSub subscription. The
// returned channel is closed, and the subscription torn down, when the
// unsubscribe function runs.
func (b *RedisBus) Subscribe(worldID string) (<-chan Frame, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.client.Subscribe(ctx, channelName(worldID))
	out := make(chan Frame, subscriberBufferSize)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var frame Frame
				if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
					b.logger.Warn("progress: redis frame decode failed", "error", err)
					continue
				}
				select {
				case out <- frame:
				default:
				}
			}
		}
	}()

	unsubscribe := func() {
		cancel()
		sub.Close()
	}
	return out, unsubscribe
}

// Publish implements Bus by serializing frame and publishing it on the
// world's Redis channel. Publish failures are logged, never returned,
// matching the advance loop's "progress delivery never blocks the story"
// contract.
func (b *RedisBus) Publish(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		b.logger.Warn("progress: redis frame encode failed", "error", err)
		return
	}
	if err := b.client.Publish(context.Background(), channelName(frame.WorldID), payload).Err(); err != nil {
		b.logger.Warn("progress: redis publish failed", "world", frame.WorldID, "error", err)
	}
}

var _ Bus = (*RedisBus)(nil)

// redisPingError wraps a connectivity check failure at construction time so
// callers can decide whether to fall back to ChannelBus.
func redisPingError(err error) error {
	return fmt.Errorf("progress: redis ping failed: %w", err)
}

// Ping verifies connectivity to the backing Redis instance.
func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return redisPingError(err)
	}
	return nil
}
