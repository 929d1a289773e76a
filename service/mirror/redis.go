package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror publishes relay events to a Redis channel ("pubsub" mode) or
// pushes them onto a list ("list" mode).
type RedisMirror struct {
	client *redis.Client
	key    string
	mode   string
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(addr, password string, db int, key, mode string) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisMirror(rdb, key, mode), nil
}

func newRedisMirror(client *redis.Client, key, mode string) *RedisMirror {
	if key == "" {
		key = "luxabot:events"
	}
	if mode == "" {
		mode = "pubsub"
	}
	return &RedisMirror{client: client, key: key, mode: mode}
}

func (r *RedisMirror) Name() string { return "redis" }

func (r *RedisMirror) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}

	if r.mode == "list" {
		return r.client.LPush(ctx, r.key, data).Err()
	}
	return r.client.Publish(ctx, r.key, data).Err()
}

func (r *RedisMirror) Close() error { return r.client.Close() }
