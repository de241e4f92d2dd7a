package realtime

import (
	"context"
	"fmt"
	"sync"

	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const handlerQueue = 256

// GoChannelBus is the in-process bus built on watermill's gochannel pub/sub.
// Publish returns once every subscriber has queued the change, so each
// subscription sees changes in publish order.
type GoChannelBus struct {
	pubSub *gochannel.GoChannel
	prefix string
	logger logger.ILogger
}

func NewGoChannelBus(prefix string, log logger.ILogger) *GoChannelBus {
	if prefix == "" {
		prefix = "changes"
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            handlerQueue,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)
	return &GoChannelBus{pubSub: pubSub, prefix: prefix, logger: log}
}

func (b *GoChannelBus) Publish(ctx context.Context, c events.Change) error {
	payload, err := events.Encode(c)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(topicFor(b.prefix, c.Table()), msg); err != nil {
		return fmt.Errorf("failed to publish change to %s: %w", c.Table(), err)
	}
	return nil
}

func (b *GoChannelBus) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := b.pubSub.Subscribe(subCtx, topicFor(b.prefix, sub.Table))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", sub.Table, err)
	}

	queue := make(chan events.Change, handlerQueue)
	go func() {
		defer close(queue)
		for msg := range messages {
			if change, ok := b.decode(sub, msg); ok {
				queue <- change
			}
		}
	}()
	go func() {
		for change := range queue {
			handler(change)
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// decode acks on receipt; handlers run from the subscription queue so a
// handler that publishes cannot block the publisher waiting on this ack.
func (b *GoChannelBus) decode(sub Subscription, msg *message.Message) (events.Change, bool) {
	defer msg.Ack()
	change, err := events.Decode(msg.Payload)
	if err != nil {
		b.logger.Warn("RealtimeBus", "Dropping unrecognized change payload", map[string]interface{}{"error": err.Error(), "table": sub.Table})
		return nil, false
	}
	return change, sub.Matches(change)
}

func (b *GoChannelBus) Close() error {
	return b.pubSub.Close()
}
