package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/treasury"
)

const stateCacheKey = "treasury:state"

// CachedStateStore layers a Redis read-through cache over a durable
// store. Touch refreshes the cache entry's expiry, so a treasury that
// keeps receiving calls keeps its hot copy alive.
type CachedStateStore struct {
	inner treasury.StateStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedStateStore(inner treasury.StateStore, rdb *redis.Client, ttl time.Duration) *CachedStateStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedStateStore{inner: inner, rdb: rdb, ttl: ttl}
}

func (s *CachedStateStore) Load(ctx context.Context) (*model.Treasury, error) {
	raw, err := s.rdb.Get(ctx, stateCacheKey).Bytes()
	if err == nil {
		var t model.Treasury
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
		// Corrupt cache entry; fall through to the durable store.
		logger.Warn("discarding unreadable cached treasury state")
		s.rdb.Del(ctx, stateCacheKey)
	}

	t, err := s.inner.Load(ctx)
	if err != nil || t == nil {
		return t, err
	}
	s.fill(ctx, t)
	return t, nil
}

func (s *CachedStateStore) Save(ctx context.Context, t *model.Treasury) error {
	if err := s.inner.Save(ctx, t); err != nil {
		return err
	}
	s.fill(ctx, t)
	return nil
}

func (s *CachedStateStore) Touch(ctx context.Context) error {
	if err := s.rdb.Expire(ctx, stateCacheKey, s.ttl).Err(); err != nil {
		logger.Warn("failed to extend treasury state cache", "error", err)
	}
	return s.inner.Touch(ctx)
}

func (s *CachedStateStore) fill(ctx context.Context, t *model.Treasury) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, stateCacheKey, raw, s.ttl).Err(); err != nil {
		logger.Warn("failed to cache treasury state", "error", err)
	}
}
