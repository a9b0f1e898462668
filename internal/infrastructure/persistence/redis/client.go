// Package redis provides the Redis-backed preference store
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient creates a Redis client and verifies the connection
func NewClient(c *config.Config, logger *zap.Logger) (redis.UniversalClient, error) {
	if c == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	cfg := &c.Redis

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{c.GetRedisAddr()},
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis client initialized",
		zap.String("addr", c.GetRedisAddr()),
		zap.Int("database", cfg.Database),
	)
	return client, nil
}
