package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge publishes events through a Redis channel so every API instance
// can notify its own websocket subscribers. Local subscribers are notified
// immediately; the instance ignores its own echoes.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	origin  string
	logger  *zap.Logger
}

// NewRedisBridge wraps hub with cross-instance fan-out over channel.
func NewRedisBridge(client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, origin: uuid.NewString(), logger: logger}
}

// Subscribe attaches fn to topic on the local hub.
func (b *RedisBridge) Subscribe(topic string, fn func(Event)) func() {
	return b.hub.Subscribe(topic, fn)
}

// Publish notifies local subscribers and forwards the event to peers.
func (b *RedisBridge) Publish(ctx context.Context, evt Event) error {
	b.hub.Dispatch(evt)
	payload, err := json.Marshal(envelope{Origin: b.origin, Event: evt})
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Run consumes peer events until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("realtime bridge subscribed", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("discarding malformed realtime event", zap.Error(err))
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.hub.Dispatch(env.Event)
}
