package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/snekaaa/banya-check/internal/protocol"
)

// RedisPublisher publishes events on a channel that every hub replica
// subscribes to.
type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Notify implements Notifier.
func (p *RedisPublisher) Notify(ctx context.Context, sessionID string, event protocol.Event) error {
	body, err := EncodeEnvelope(sessionID, event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, string(body)).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// RedisSubscriber feeds events published on a channel into a local hub.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
	logger  *slog.Logger
}

// NewRedisSubscriber creates a subscriber. A nil logger uses slog.Default.
func NewRedisSubscriber(client *redis.Client, channel string, hub Broadcaster, logger *slog.Logger) *RedisSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSubscriber{client: client, channel: channel, hub: hub, logger: logger}
}

// Run subscribes and re-broadcasts until ctx is done.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("relay subscribed", "channel", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.Handle(msg.Payload)
		}
	}
}

// Handle broadcasts one published envelope and returns the number of
// connections reached. Invalid payloads are logged and dropped.
func (s *RedisSubscriber) Handle(payload string) int {
	sessionID, event, err := DecodeEnvelope([]byte(payload))
	if err != nil {
		s.logger.Warn("dropping relayed event", "channel", s.channel, "error", err)
		return 0
	}
	return s.hub.Publish(sessionID, event)
}
