// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list closed rounds are pushed to.
const DefaultQueueName = "spy_rounds"

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisPublisher pushes round records onto a Redis list for the historian.
type RedisPublisher struct {
	rdb   redis.Cmdable
	queue string
}

// NewRedisPublisher returns a publisher writing to queue, or to
// DefaultQueueName when queue is empty.
func NewRedisPublisher(rdb redis.Cmdable, queue string) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisPublisher{rdb: rdb, queue: queue}
}

// RecordRound serializes rec to JSON and RPUSHes it.
func (p *RedisPublisher) RecordRound(ctx context.Context, rec game.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Queue returns the list name records are pushed to.
func (p *RedisPublisher) Queue() string { return p.queue }
