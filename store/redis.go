package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps event counters in a single Redis hash, one field per
// event type.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Store instance.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// IncrementEvent increments the counter for an event type.
func (s *RedisStore) IncrementEvent(ctx context.Context, eventType string) error {
	return s.client.HIncrBy(ctx, s.key, eventType, 1).Err()
}

// GetEventCounts returns all event counters.
func (s *RedisStore) GetEventCounts(ctx context.Context) (map[string]int64, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(fields))
	for eventType, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", eventType, err)
		}
		counts[eventType] = n
	}
	return counts, nil
}
