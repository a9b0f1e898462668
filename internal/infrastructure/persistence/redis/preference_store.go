package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PreferenceStore keeps preferences as plain Redis strings without expiry
type PreferenceStore struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ outbound.PreferenceStore = (*PreferenceStore)(nil)

// NewPreferenceStore creates a store on an existing client
func NewPreferenceStore(client redis.UniversalClient, logger *zap.Logger) *PreferenceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceStore{
		client: client,
		logger: logger.With(zap.String("component", "redis_preference_store")),
	}
}

// Get retrieves a value; a missing key is not an error
func (r *PreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Debug("Preference get failed", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value with no TTL
func (r *PreferenceStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		r.logger.Error("Preference set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (r *PreferenceStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Preference delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection, used by health checks
func (r *PreferenceStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
