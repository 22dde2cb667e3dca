package binarystore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/E8A281E6ACA2/BinaryStore/internal/audit"
	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
	"github.com/E8A281E6ACA2/BinaryStore/internal/rate"
	"github.com/E8A281E6ACA2/BinaryStore/internal/stores"
	"github.com/E8A281E6ACA2/BinaryStore/password"
	"github.com/E8A281E6ACA2/BinaryStore/permission"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// RateLimiter counts failed logins per "<ip>:<email>" key.
type RateLimiter = rate.Limiter

// dummyPassword is hashed once at build time so logins for unknown emails
// spend one key derivation like real ones.
const dummyPassword = "binarystore-unknown-account"

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization
// and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	sessionStore session.Store
	resetStore   ResetStore
	rateLimiter  RateLimiter
	notifier     Notifier
	auditSink    AuditSink

	built bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client used for the Redis session store, the Redis
// reset token store and the Redis rate limiter when those are not given
// explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account datastore. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithSessionStore sets the session backend. When unset, Build uses a
// [session.RedisStore] on the configured Redis client.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithResetStore sets the reset token backend. When unset and resets are
// enabled, Build uses the Redis token store.
func (b *Builder) WithResetStore(store ResetStore) *Builder {
	b.resetStore = store
	return b
}

// WithRateLimiter overrides the limiter selected by RateLimit.Backend.
func (b *Builder) WithRateLimiter(limiter RateLimiter) *Builder {
	b.rateLimiter = limiter
	return b
}

// WithNotifier sets the password reset mail sender.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination of audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithProductionMode toggles [SecurityConfig.ProductionMode].
func (b *Builder) WithProductionMode(enabled bool) *Builder {
	b.config.Security.ProductionMode = enabled
	return b
}

// Build validates the configuration and wires the engine. A builder can
// be used only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	// -------- RESET STORE --------
	resetStore := b.resetStore
	if resetStore == nil && cfg.PasswordReset.Enabled {
		if b.redis == nil {
			return nil, errors.New("PasswordReset requires a reset store or redis client")
		}
		resetStore = stores.NewPasswordResetStore(b.redis, cfg.PasswordReset.RedisPrefix)
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		sessionStore: store,
		resetStore:   resetStore,
		notifier:     b.notifier,
		stop:         make(chan struct{}),
		now:          time.Now,
	}
	if lister, ok := store.(session.Lister); ok {
		engine.sessionLister = lister
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		limiter := b.rateLimiter
		if limiter == nil {
			switch cfg.RateLimit.Backend {
			case RateLimitRedis:
				if b.redis == nil {
					return nil, errors.New("RateLimit redis backend requires redis client")
				}
				rl, err := rate.NewRedis(b.redis, cfg.RateLimit.limiter())
				if err != nil {
					return nil, err
				}
				limiter = rl
			default:
				ml, err := rate.NewMemory(cfg.RateLimit.limiter())
				if err != nil {
					return nil, err
				}
				engine.memoryLimiter = ml
				limiter = ml
			}
		}
		engine.rateLimiter = limiter
	}

	// -------- PERMISSIONS --------
	roleManager, err := permission.Portal()
	if err != nil {
		return nil, err
	}
	engine.roleManager = roleManager

	// -------- PASSWORDS --------
	ph, err := password.NewScrypt(cfg.Password.scrypt())
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph
	engine.hashSlots = make(chan struct{}, cfg.Password.MaxConcurrentHashes)

	dummy, err := ph.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Durable: func(ev internalaudit.Event) bool {
			return AdminAction(ev.EventType) != ""
		},
		SinkTimeout: cfg.Datastore.OperationTimeout,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.flows = internalflows.New(engine.flowDeps())

	if engine.memoryLimiter != nil {
		engine.startLimiterSweep(cfg.RateLimit.Window)
	}

	b.built = true

	return engine, nil
}
