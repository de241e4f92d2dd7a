package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans changes out across instances with Redis pub/sub.
// Delivery is at-most-once; subscribers that are offline miss changes.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	logger logger.ILogger
}

func NewRedisBus(url, prefix string, log logger.ILogger) (*RedisBus, error) {
	if prefix == "" {
		prefix = "changes"
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("RedisBus", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	opt.DialTimeout = 5 * time.Second
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBus{rdb: rdb, prefix: prefix, logger: log}, nil
}

func (b *RedisBus) Publish(ctx context.Context, c events.Change) error {
	payload, err := events.Encode(c)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topicFor(b.prefix, c.Table()), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	channel := topicFor(b.prefix, sub.Table)
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Receive confirms the subscription before any publish can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			change, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("RedisBus", "Dropping unrecognized change payload", map[string]interface{}{"error": err.Error(), "channel": msg.Channel})
				continue
			}
			if sub.Matches(change) {
				handler(change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = pubsub.Close() })
	}, nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
