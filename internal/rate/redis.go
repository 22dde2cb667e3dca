package rate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a [Limiter] shared across instances through Redis counters.
type Redis struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(redisClient redis.UniversalClient, cfg Config) (*Redis, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Redis{
		redis:  redisClient,
		config: cfg,
	}, nil
}

// IsBlocked reads the counter for key. A missing key is not blocked.
func (l *Redis) IsBlocked(ctx context.Context, key string) (bool, error) {
	ctx, cancel := l.commandContext(ctx)
	defer cancel()

	count, err := l.redis.Get(ctx, redisKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count >= int64(l.config.MaxAttempts), nil
}

// RecordFailure increments the counter for key.
func (l *Redis) RecordFailure(ctx context.Context, key string) error {
	ctx, cancel := l.commandContext(ctx)
	defer cancel()

	_, err := l.incrementWithTTL(ctx, redisKey(key))
	return err
}

// Reset deletes the counter for key.
func (l *Redis) Reset(ctx context.Context, key string) error {
	ctx, cancel := l.commandContext(ctx)
	defer cancel()

	if err := l.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Redis) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: only the first hit sets the expiry.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Redis) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.config.CommandTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.config.CommandTimeout)
}

func redisKey(key string) string {
	return KeyPrefix + ":" + key
}
