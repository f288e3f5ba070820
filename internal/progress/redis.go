package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sync:progress:"

// Stale snapshots age out on their own; no job runs anywhere near this long.
const redisTTL = 24 * time.Hour

// RedisStore shares job snapshots across instances through Redis. Used when
// multiple replicas serve the API but only one runs the scheduler.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed progress store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, jobID string) (Snapshot, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+jobID).Result()
	if err == redis.Nil {
		return Snapshot{JobID: jobID, Status: StatusRunning}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read progress from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode progress snapshot: %w", err)
	}

	return snap, nil
}

// Set implements Store. Read-modify-write without a lock is fine here: each
// job has a single writer goroutine.
func (s *RedisStore) Set(ctx context.Context, jobID string, update Update) error {
	snap, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	snap.JobID = jobID
	snap.apply(update)

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress snapshot: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+jobID, raw, redisTTL).Err(); err != nil {
		return fmt.Errorf("failed to write progress to redis: %w", err)
	}

	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("failed to clear progress in redis: %w", err)
	}
	return nil
}
