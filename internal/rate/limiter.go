package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts is the failure budget per window.
	DefaultMaxAttempts = 10
	// DefaultWindow is the fixed window length.
	DefaultWindow = 15 * time.Minute
	// DefaultCommandTimeout bounds each Redis command.
	DefaultCommandTimeout = 250 * time.Millisecond
	// KeyPrefix namespaces limiter keys in Redis.
	KeyPrefix = "rate_limit"
)

// Limiter counts failures per key inside a fixed window.
//
// IsBlocked must be checked before the protected action. RecordFailure is
// called only for failed attempts and Reset after a success.
type Limiter interface {
	IsBlocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts    int
	Window         time.Duration
	CommandTimeout time.Duration
}

// DefaultConfig returns 10 attempts per 15 minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		Window:         DefaultWindow,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Validate checks that limits are positive.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: MaxAttempts must be > 0", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: Window must be > 0", ErrInvalidConfig)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("%w: CommandTimeout must be >= 0", ErrInvalidConfig)
	}
	return nil
}
