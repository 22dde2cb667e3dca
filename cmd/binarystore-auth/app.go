package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/configstore"
	"github.com/E8A281E6ACA2/BinaryStore/encryption"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/pgstore"
	"github.com/E8A281E6ACA2/BinaryStore/notify"
)

// app holds the connections and services shared by the subcommands.
type app struct {
	settings *settings
	db       *sql.DB
	redis    *redis.Client
	config   *configstore.Store
	resets   *pgstore.Resets
	engine   *binarystore.Engine
}

// openApp connects to Postgres (and Redis when configured), retrying
// until StartupTimeout.
func openApp(ctx context.Context, s *settings) (*app, error) {
	if s.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	a := &app{settings: s}
	db, err := pgstore.Open(ctx, s.DatabaseURL, s.StartupTimeout)
	if err != nil {
		return nil, err
	}
	a.db = db

	if s.RedisURL != "" {
		rdb, err := connectRedis(ctx, s.RedisURL, s.StartupTimeout)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.redis = rdb
	}

	var cipher *encryption.Cipher
	if s.EncryptionKey != "" {
		cipher, err = encryption.New(s.EncryptionKey)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("CONFIG_ENCRYPTION_KEY: %w", err)
		}
	} else {
		log.Warn(ctx).Msg("CONFIG_ENCRYPTION_KEY not set; encrypted settings are unavailable")
	}
	a.config = configstore.New(pgstore.NewSystemConfig(db), cipher)
	a.resets = pgstore.NewResets(db)
	return a, nil
}

func connectRedis(ctx context.Context, rawURL string, maxWait time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	err = backoff.RetryNotify(func() error {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return rdb.Ping(pctx).Err()
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Warn(ctx).Err(err).Dur("retry_in", next).Msg("redis not ready")
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping error: %w", err)
	}
	return rdb, nil
}

// buildEngine wires the engine onto the open connections.
func (a *app) buildEngine() (*binarystore.Engine, error) {
	cfg, err := a.settings.authConfig()
	if err != nil {
		return nil, err
	}

	var fallback binarystore.Notifier
	if !a.settings.Production() {
		fallback = notify.LogNotifier{}
	}

	b := binarystore.New().
		WithConfig(cfg).
		WithUserProvider(pgstore.NewUsers(a.db)).
		WithResetStore(a.resets).
		WithNotifier(notify.Fallback{
			Primary:   notify.NewSMTPNotifier(a.config, a.settings.MailFrom),
			Secondary: fallback,
		}).
		WithAuditSink(binarystore.MultiSink{
			binarystore.NewLoggerSink(*log.Logger()),
			pgstore.NewAdminLog(a.db),
		})
	if a.redis != nil {
		b.WithRedis(a.redis)
	}
	if a.settings.SessionStore == sessionStorePostgres {
		b.WithSessionStore(pgstore.NewSessions(a.db))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return engine, nil
}

// Close releases everything opened by openApp and buildEngine.
func (a *app) Close() error {
	var result *multierror.Error
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close postgres: %w", err))
		}
	}
	return result.ErrorOrNil()
}
