package binarystore

import (
	"errors"
	"strings"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/internal/rate"
	"github.com/E8A281E6ACA2/BinaryStore/password"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Config holds every engine setting. Build one with [DefaultConfig],
// override fields, and pass it to [Builder.WithConfig]. The engine keeps
// its own copy; later changes to the caller's value have no effect.
type Config struct {
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	Datastore     DatastoreConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the background touch.
type SessionConfig struct {
	// TTL is the lifetime of new sessions and the cookie Max-Age.
	TTL time.Duration
	// TouchTimeout bounds the background lastAccessAt update.
	TouchTimeout time.Duration
	// RedisPrefix namespaces session keys when the Redis store is used.
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds scrypt costs and the password policy.
type PasswordConfig struct {
	N          int
	R          int
	P          int
	SaltLength int
	KeyLength  int

	// MinLength applies to new passwords (registration, admin
	// initialization, reset). Existing hashes are never re-checked.
	MinLength int
	MaxLength int

	// MaxConcurrentHashes bounds simultaneous key derivations.
	MaxConcurrentHashes int
}

func (c PasswordConfig) scrypt() password.Config {
	return password.Config{
		N:          c.N,
		R:          c.R,
		P:          c.P,
		SaltLength: c.SaltLength,
		KeyLength:  c.KeyLength,
	}
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset token issuance.
type PasswordResetConfig struct {
	Enabled  bool
	TokenTTL time.Duration
	// BaseURL is the public site origin used to build reset links.
	BaseURL string
	// LinkPath is appended to BaseURL; the token is sent as ?token=.
	LinkPath    string
	RedisPrefix string
	// NotifyTimeout bounds delivery of the reset message. Delivery runs in
	// the background after the request has been answered.
	NotifyTimeout time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitBackend selects the login limiter implementation.
type RateLimitBackend string

const (
	// RateLimitMemory keeps counters in process. Single instance only.
	RateLimitMemory RateLimitBackend = "memory"
	// RateLimitRedis shares counters across instances.
	RateLimitRedis RateLimitBackend = "redis"
)

// RateLimitConfig controls the login limiter.
type RateLimitConfig struct {
	Enabled        bool
	Backend        RateLimitBackend
	MaxAttempts    int
	Window         time.Duration
	CommandTimeout time.Duration
}

func (c RateLimitConfig) limiter() rate.Config {
	return rate.Config{
		MaxAttempts:    c.MaxAttempts,
		Window:         c.Window,
		CommandTimeout: c.CommandTimeout,
	}
}

/*
====================================
DATASTORE CONFIG
====================================
*/

// DatastoreConfig bounds calls to the user, session and reset stores.
type DatastoreConfig struct {
	OperationTimeout time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher. DropIfFull
// applies to routine events only; admin actions wait for buffer space.
// Each sink write is bounded by Datastore.OperationTimeout.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment-wide switches.
type SecurityConfig struct {
	// ProductionMode sets the Secure cookie flag, suppresses error details
	// in responses and stops logging reset links.
	ProductionMode bool
}

// DefaultConfig returns the settings used by the admin portal: 7 day
// sessions, 10 login attempts per 15 minutes, 1 hour reset tokens.
func DefaultConfig() Config {
	scrypt := password.DefaultConfig()
	limiter := rate.DefaultConfig()

	return Config{
		Session: SessionConfig{
			TTL:          session.DefaultTTL,
			TouchTimeout: 2 * time.Second,
			RedisPrefix:  "sbs",
		},
		Password: PasswordConfig{
			N:                   scrypt.N,
			R:                   scrypt.R,
			P:                   scrypt.P,
			SaltLength:          scrypt.SaltLength,
			KeyLength:           scrypt.KeyLength,
			MinLength:           8,
			MaxLength:           1024,
			MaxConcurrentHashes: 8,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:       true,
			TokenTTL:      time.Hour,
			BaseURL:       "http://localhost:60318",
			LinkPath:      "/admin/password/reset",
			RedisPrefix:   "sbr",
			NotifyTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			Backend:        RateLimitMemory,
			MaxAttempts:    limiter.MaxAttempts,
			Window:         limiter.Window,
			CommandTimeout: limiter.CommandTimeout,
		},
		Datastore: DatastoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.TouchTimeout <= 0 {
		return errors.New("Session TouchTimeout must be > 0")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session RedisPrefix must not contain whitespace")
	}

	// Password
	if _, err := password.NewScrypt(c.Password.scrypt()); err != nil {
		return errors.New("Password scrypt parameters invalid: " + err.Error())
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MaxConcurrentHashes < 1 {
		return errors.New("Password MaxConcurrentHashes must be >= 1")
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL <= 0 {
			return errors.New("PasswordReset TokenTTL must be > 0")
		}
		if c.PasswordReset.BaseURL == "" {
			return errors.New("PasswordReset BaseURL must be set")
		}
		if !strings.HasPrefix(c.PasswordReset.LinkPath, "/") {
			return errors.New("PasswordReset LinkPath must start with /")
		}
		if c.PasswordReset.NotifyTimeout <= 0 {
			return errors.New("PasswordReset NotifyTimeout must be > 0")
		}
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Backend != RateLimitMemory && c.RateLimit.Backend != RateLimitRedis {
			return errors.New("RateLimit Backend must be memory or redis")
		}
		if err := c.RateLimit.limiter().Validate(); err != nil {
			return errors.New("RateLimit " + err.Error())
		}
	}

	// Datastore
	if c.Datastore.OperationTimeout <= 0 {
		return errors.New("Datastore OperationTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Enabled")
	}

	return nil
}
