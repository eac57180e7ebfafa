package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pegvault/pegvault/internal/config"
)

// NewRedisClient connects and pings once so startup fails fast when
// the cache is unreachable.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
