package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/torkelsen/cardledger/internal/model"
)

// ListKey is the Redis list that completed transactions are pushed to
const ListKey = "transactions:completed"

// RedisPublisher pushes completed transactions onto a Redis list so that
// out-of-process consumers (receipt rendering, dashboards) can pick them up
// in FIFO order
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishTransaction marshals the transaction and appends it to the list
func (p *RedisPublisher) PublishTransaction(ctx context.Context, tx model.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}
	if err := p.client.RPush(ctx, ListKey, data).Err(); err != nil {
		return fmt.Errorf("failed to publish transaction event: %w", err)
	}
	return nil
}

// Pending returns the number of events waiting on the list
func (p *RedisPublisher) Pending(ctx context.Context) (int64, error) {
	return p.client.LLen(ctx, ListKey).Result()
}
