package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

// Session store backends selectable with SESSION_STORE.
const (
	sessionStorePostgres = "postgres"
	sessionStoreRedis    = "redis"
)

// settings is the process configuration. Every field can be set from the
// environment variable named after its key in upper case.
type settings struct {
	ListenAddr      string
	AppEnv          string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	EncryptionKey   string
	BaseURL         string
	SessionStore    string
	SessionTTL      time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	ScryptN         int
	ScryptR         int
	ScryptP         int
	MailFrom        string
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Production reports whether APP_ENV is "production".
func (s *settings) Production() bool {
	return strings.EqualFold(s.AppEnv, "production")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("config_encryption_key", "")
	v.SetDefault("app_base_url", "http://localhost:60318")
	v.SetDefault("session_store", sessionStorePostgres)
	v.SetDefault("session_ttl", "168h")
	v.SetDefault("rate_limit_window_ms", 15*60*1000)
	v.SetDefault("rate_limit_max", 10)
	v.SetDefault("scrypt_n", 16384)
	v.SetDefault("scrypt_r", 8)
	v.SetDefault("scrypt_p", 1)
	v.SetDefault("mail_from", "no-reply@binarystore.local")
	v.SetDefault("startup_timeout", "30s")
	v.SetDefault("shutdown_timeout", "10s")
}

// loadSettings reads defaults, then configFile when set, then the
// environment.
func loadSettings(configFile string) (*settings, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	sessionTTL, err := seconds(v.GetString("session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	startup, err := seconds(v.GetString("startup_timeout"))
	if err != nil {
		return nil, fmt.Errorf("STARTUP_TIMEOUT: %w", err)
	}
	shutdown, err := seconds(v.GetString("shutdown_timeout"))
	if err != nil {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	s := &settings{
		ListenAddr:      v.GetString("listen_addr"),
		AppEnv:          v.GetString("app_env"),
		LogLevel:        v.GetString("log_level"),
		DatabaseURL:     v.GetString("database_url"),
		RedisURL:        v.GetString("redis_url"),
		EncryptionKey:   v.GetString("config_encryption_key"),
		BaseURL:         v.GetString("app_base_url"),
		SessionStore:    strings.ToLower(v.GetString("session_store")),
		SessionTTL:      sessionTTL,
		RateLimitWindow: time.Duration(v.GetInt64("rate_limit_window_ms")) * time.Millisecond,
		RateLimitMax:    v.GetInt("rate_limit_max"),
		ScryptN:         v.GetInt("scrypt_n"),
		ScryptR:         v.GetInt("scrypt_r"),
		ScryptP:         v.GetInt("scrypt_p"),
		MailFrom:        v.GetString("mail_from"),
		StartupTimeout:  startup,
		ShutdownTimeout: shutdown,
	}

	switch s.SessionStore {
	case sessionStorePostgres:
	case sessionStoreRedis:
		if s.RedisURL == "" {
			return nil, errors.New("SESSION_STORE=redis requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q", sessionStorePostgres, sessionStoreRedis)
	}
	return s, nil
}

// seconds parses a Go duration, or a bare integer as seconds.
func seconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// authConfig maps s onto the engine configuration and validates it.
func (s *settings) authConfig() (binarystore.Config, error) {
	cfg := binarystore.DefaultConfig()
	cfg.Session.TTL = s.SessionTTL
	cfg.Password.N = s.ScryptN
	cfg.Password.R = s.ScryptR
	cfg.Password.P = s.ScryptP
	cfg.PasswordReset.BaseURL = s.BaseURL
	cfg.RateLimit.Window = s.RateLimitWindow
	cfg.RateLimit.MaxAttempts = s.RateLimitMax
	if s.RedisURL != "" {
		cfg.RateLimit.Backend = binarystore.RateLimitRedis
	}
	cfg.Security.ProductionMode = s.Production()

	if err := cfg.Validate(); err != nil {
		return binarystore.Config{}, err
	}
	return cfg, nil
}
