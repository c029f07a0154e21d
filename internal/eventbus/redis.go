package eventbus

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport delivers events over Redis Pub/Sub, one channel per event
// type. Messages published while a subscriber is down are lost, which is the
// bus contract.
type RedisTransport struct {
	rdb *redis.Client
}

func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) Publish(ctx context.Context, channel string, body []byte) error {
	return t.rdb.Publish(ctx, channel, body).Err()
}

func (t *RedisTransport) Consume(
	ctx context.Context,
	channels []string,
	ready chan<- struct{},
	deliver func(channel string, body []byte),
) error {
	sub := t.rdb.Subscribe(ctx, channels...)
	defer sub.Close()

	// Receive blocks until the server acknowledges the subscription; only
	// after that is delivery active.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	close(ready)

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			deliver(m.Channel, []byte(m.Payload))
		}
	}
}
