package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/pkg/logger"
)

// RedisIdempotencyStore makes idempotency keys survive restarts and
// work across replicas. SetNX doubles as the processing lock.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *RedisIdempotencyStore) GetOrLock(key string) (*middleware.IdempotencyRecord, bool) {
	ctx := context.Background()
	lock := middleware.IdempotencyRecord{Processing: true, CreatedAt: time.Now()}
	raw, _ := json.Marshal(lock)

	claimed, err := s.rdb.SetNX(ctx, s.key(key), raw, s.ttl).Result()
	if err != nil {
		// Treat Redis failure as a miss; the operation proceeds
		// without replay protection rather than failing closed.
		logger.Warn("idempotency store unavailable", "error", err)
		return nil, false
	}
	if claimed {
		return nil, false
	}

	stored, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec middleware.IdempotencyRecord
	if err := json.Unmarshal(stored, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *RedisIdempotencyStore) Save(key string, status int, body []byte) {
	rec := middleware.IdempotencyRecord{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.rdb.Set(context.Background(), s.key(key), raw, s.ttl).Err(); err != nil {
		logger.Warn("failed to save idempotency record", "error", err)
	}
}

func (s *RedisIdempotencyStore) Unlock(key string) {
	if err := s.rdb.Del(context.Background(), s.key(key)).Err(); err != nil {
		logger.Warn("failed to release idempotency key", "error", err)
	}
}

func (s *RedisIdempotencyStore) key(key string) string {
	return "idem:" + key
}
