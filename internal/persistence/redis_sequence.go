package persistence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// raiseTo sets KEYS[1] to ARGV[1] unless it already holds a larger value.
var raiseTo = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call("SET", KEYS[1], floor)
  return floor
end
return current
`)

// RedisSequence hands out ticket numbers from an INCR counter.
type RedisSequence struct {
	client *redis.Client
	key    string
}

// NewRedisSequence builds a sequence stored under key.
func NewRedisSequence(client *redis.Client, key string) *RedisSequence {
	return &RedisSequence{client: client, key: key}
}

// Next returns the next ticket number.
func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", s.key, err)
	}
	return n, nil
}

// EnsureAtLeast raises the counter so the next number is above floor.
func (s *RedisSequence) EnsureAtLeast(ctx context.Context, floor int64) error {
	if err := raiseTo.Run(ctx, s.client, []string{s.key}, floor).Err(); err != nil {
		return fmt.Errorf("raise %s: %w", s.key, err)
	}
	return nil
}
