package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes each event on the pub/sub channel named after its type
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to the redis server at addr. prefix, when set, is prepended to
// every channel name.
func NewRedisPublisher(addr, prefix string) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel an event type is published on
func (r *RedisPublisher) Channel(typ string) string {
	return r.prefix + typ
}

func (r *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.Channel(e.Type), data).Err(); err != nil {
		return fmt.Errorf("unable to publish %s to redis, %w", e.Type, err)
	}
	return nil
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
