package hub

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const relayChannel = "chat-events"

// RedisRelay fans broadcasts across processes over a Redis pub/sub channel.
type RedisRelay struct {
	rdb *redis.Client
}

func NewRedisRelay(addr string) *RedisRelay {
	return &RedisRelay{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, raw []byte) error {
	return r.rdb.Publish(ctx, relayChannel, raw).Err()
}

func (r *RedisRelay) Run(ctx context.Context, deliver func(raw []byte)) {
	pubsub := r.rdb.Subscribe(ctx, relayChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("hub: redis relay subscription closed")
				return
			}
			deliver([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
