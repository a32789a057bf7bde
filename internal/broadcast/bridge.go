package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
)

// RedisBridge fans room events out to the other gateway instances over Redis
// pub/sub. Messages carry the origin instance id so an instance never
// redelivers its own publications.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	logger     *zap.Logger
}

// NewRedisBridge constructs a bridge; the hub stamps its instance id on it.
func NewRedisBridge(client *redis.Client, prefix string, logger *zap.Logger) *RedisBridge {
	if prefix == "" {
		prefix = "classroom"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, prefix: prefix, logger: logger}
}

func (b *RedisBridge) channel(room string) string {
	return fmt.Sprintf("%s:room:%s", b.prefix, room)
}

// Publish pushes a wire message onto the room channel.
func (b *RedisBridge) Publish(ctx context.Context, msg models.WireMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(msg.Room), encoded).Err()
}

// Consume subscribes to every room channel and hands foreign messages to
// deliver. Blocks until ctx is cancelled.
func (b *RedisBridge) Consume(ctx context.Context, deliver func(models.WireMessage)) {
	pubsub := b.client.PSubscribe(ctx, b.channel("*"))
	defer pubsub.Close() //nolint:errcheck

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg models.WireMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				b.logger.Warn("bridged message rejected", zap.Error(err))
				continue
			}
			if msg.Origin == b.instanceID {
				continue
			}
			deliver(msg)
		}
	}
}
