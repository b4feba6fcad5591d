package database

import (
	"context"
	"fmt"

	"biobyia-go/internal/config"
	"biobyia-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// InitRedis opens and pings the Redis connection.
func InitRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return client, nil
}
