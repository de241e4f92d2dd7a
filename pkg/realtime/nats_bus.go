package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const natsStreamName = "CHANGES"

// NatsBus carries changes between processes over a JetStream stream.
// Each subscription is an ephemeral ordered consumer starting at new messages.
type NatsBus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger logger.ILogger
}

func NewNatsBus(url, prefix string, log logger.ILogger) (*NatsBus, error) {
	if prefix == "" {
		prefix = "changes"
	}
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      natsStreamName,
		Subjects:  []string{prefix + ".>"},
		Storage:   jetstream.MemoryStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    time.Hour,
	})
	if err != nil {
		log.Warn("NatsBus", "Failed to ensure change stream", map[string]interface{}{"error": err.Error(), "stream": natsStreamName})
	}

	return &NatsBus{nc: nc, js: js, prefix: prefix, logger: log}, nil
}

func (b *NatsBus) Publish(ctx context.Context, c events.Change) error {
	payload, err := events.Encode(c)
	if err != nil {
		return err
	}
	subject := topicFor(b.prefix, c.Table())
	if _, err := b.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish change to subject %s: %w", subject, err)
	}
	return nil
}

func (b *NatsBus) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	subject := topicFor(b.prefix, sub.Table)
	consumer, err := b.js.OrderedConsumer(ctx, natsStreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", subject, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		change, err := events.Decode(msg.Data())
		if err != nil {
			b.logger.Warn("NatsBus", "Dropping unrecognized change payload", map[string]interface{}{"error": err.Error(), "subject": msg.Subject()})
			return
		}
		if sub.Matches(change) {
			handler(change)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", subject, err)
	}

	var once sync.Once
	return func() { once.Do(consumeCtx.Stop) }, nil
}

func (b *NatsBus) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
