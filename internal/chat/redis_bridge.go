package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// envelope tags each event with the publishing instance so it is not delivered twice locally.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge fans events out to every API instance over a Redis pub/sub channel.
type RedisBridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     *slog.Logger
}

func NewRedisBridge(rdb *redis.Client, hub *Hub, channel string, log *slog.Logger) *RedisBridge {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBridge{
		rdb:     rdb,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Relay delivers locally right away and then publishes for the other instances.
func (b *RedisBridge) Relay(ctx context.Context, evt Event) error {
	b.hub.Publish(evt)

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: evt})
	if err != nil {
		return fmt.Errorf("chat.relay: marshal: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("chat.relay: publish: %w", err)
	}
	return nil
}

// Run re-injects events published by other instances until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("chat.bridge: subscribe %s: %w", b.channel, err)
	}
	b.log.Info("chat bridge subscribed", "channel", b.channel, "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle([]byte(m.Payload))
		}
	}
}

func (b *RedisBridge) handle(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.log.Warn("chat bridge: bad payload", "err", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.hub.Publish(env.Event)
}
