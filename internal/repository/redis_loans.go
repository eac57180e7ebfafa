package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/pegvault/pegvault/internal/model"
)

// RedisLoanStore keeps a capped list of recent flash loans for fast
// reads; the Postgres repo remains the durable record.
type RedisLoanStore struct {
	rdb *redis.Client
	key string
	max int
}

func NewRedisLoanStore(rdb *redis.Client, key string, max int) *RedisLoanStore {
	if key == "" {
		key = "loans:completed"
	}
	if max <= 0 {
		max = 10000
	}
	return &RedisLoanStore{rdb: rdb, key: key, max: max}
}

func (s *RedisLoanStore) Append(ctx context.Context, rec *model.LoanRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, s.key, raw)
	pipe.LTrim(ctx, s.key, 0, int64(s.max-1))
	_, err = pipe.Exec(ctx)
	return err
}

// List returns up to limit recent loans, newest first.
func (s *RedisLoanStore) List(ctx context.Context, limit int) ([]*model.LoanRecord, error) {
	if limit <= 0 || limit > s.max {
		limit = 50
	}
	raws, err := s.rdb.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.LoanRecord, 0, len(raws))
	for _, raw := range raws {
		var rec model.LoanRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}
