package persistence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisEventPublisher fans ticket events out over a Redis pub/sub channel.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisEventPublisher binds a publisher to channel.
func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: channel}
}

// Publish sends an already encoded event.
func (p *RedisEventPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.client.Publish(ctx, p.channel, payload).Err()
}
