package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Channel is the Redis pub/sub channel shared by all API instances.
const Channel = "tableside:changes"

// Redis fans changes out through Redis pub/sub so that every API instance
// delivers them to its own websocket clients.
type Redis struct {
	client *redis.Client
	sink   Sink
}

// NewRedis parses a redis:// URL and returns a broker bound to sink.
func NewRedis(url string, sink Sink) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), sink: sink}, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Publish(ctx context.Context, c Change) error {
	msg, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := r.client.Publish(ctx, Channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards messages from Channel to the sink until ctx is done.
func (r *Redis) Run(ctx context.Context) {
	pubsub := r.client.Subscribe(ctx, Channel)
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
			var head struct {
				Table string `json:"table"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &head); err != nil || head.Table == "" {
				log.WithError(err).Warn("notify: dropping malformed change")
				continue
			}
			r.sink.Broadcast(head.Table, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
