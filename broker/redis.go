package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisBroker implements MessageBroker over Redis pub/sub. Delivery is
// at-most-once, which matches the relay's fire-and-forget broadcast
// semantics.
type RedisBroker struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisBroker creates a broker on an existing Redis client. The client
// is shared with the session store and is not closed by the broker.
func NewRedisBroker(client *redis.Client, log *slog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		log:    log.With("component", "redis-broker"),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message Message) error {
	if err := b.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Force the subscription to be established before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	messages := make(chan Message, 100)
	go func() {
		defer close(messages)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var message Message
				if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
					b.log.Warn("message decode error", "error", err)
					continue
				}
				select {
				case messages <- message:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return messages, nil
}

func (b *RedisBroker) Close() error {
	return nil // shared client, closed by its owner
}

func (b *RedisBroker) Type() string {
	return "redis"
}
