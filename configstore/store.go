package configstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/E8A281E6ACA2/BinaryStore/encryption"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/pgstore"
)

var (
	// ErrNoCipher is returned when an encrypted value is written without a
	// configured encryption key.
	ErrNoCipher = errors.New("config encryption key not configured")
	// ErrEmptyKey is returned for an empty setting name.
	ErrEmptyKey = errors.New("config key is empty")
)

// Entry is a stored setting.
type Entry = pgstore.ConfigEntry

// Repository is the persistence used by [Store].
type Repository interface {
	Get(ctx context.Context, key string) (Entry, error)
	Upsert(ctx context.Context, e Entry) error
	InsertIfAbsent(ctx context.Context, e Entry) (bool, error)
}

// Default is a setting seeded on first run.
type Default struct {
	Key       string
	Value     string
	Encrypted bool
}

// Defaults are written by [Store.SeedDefaults] when the first admin is
// created.
var Defaults = []Default{
	{Key: "r2_account_id"},
	{Key: "r2_access_key_id"},
	{Key: "r2_secret_access_key", Encrypted: true},
	{Key: "r2_bucket"},
	{Key: "r2_endpoint"},
	{Key: "r2_region", Value: "auto"},
	{Key: "system_name", Value: "BinaryStore"},
	{Key: "system_description", Value: "Software download platform"},
	{Key: "system_logo"},
	{Key: "system_favicon"},
	{Key: "smtp_host"},
	{Key: "smtp_port", Value: "587"},
	{Key: "smtp_username"},
	{Key: "smtp_password", Encrypted: true},
	{Key: "smtp_from"},
	{Key: "smtp_secure", Value: "false"},
}

// sensitiveKeys are always written encrypted.
var sensitiveKeys = map[string]bool{
	"r2_secret_access_key": true,
	"r2_access_key_id":     true,
	"smtp_password":        true,
	"redis_password":       true,
}

// IsSensitive reports whether key holds a secret.
func IsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Store reads and writes system settings.
type Store struct {
	repo   Repository
	cipher *encryption.Cipher
	env    *viper.Viper
}

// New returns a Store over repo. cipher may be nil, in which case
// encrypted rows are skipped on read and encrypted writes fail.
func New(repo Repository, cipher *encryption.Cipher) *Store {
	env := viper.New()
	env.AutomaticEnv()
	for _, d := range Defaults {
		if d.Value != "" {
			env.SetDefault(d.Key, d.Value)
		}
	}
	return &Store{repo: repo, cipher: cipher, env: env}
}

// Get resolves key. The second result is false when no layer has a value.
// Datastore and decryption failures are logged and fall through to the
// environment.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", false
	}

	if s.repo != nil {
		e, err := s.repo.Get(ctx, key)
		switch {
		case err == nil:
			if v, ok := s.open(ctx, e); ok {
				return v, true
			}
		case errors.Is(err, pgstore.ErrNotFound):
		default:
			log.Warn(ctx).Err(err).Str("key", key).Msg("config lookup failed")
		}
	}

	if s.env.IsSet(key) {
		return s.env.GetString(key), true
	}
	return "", false
}

// GetDefault is Get with a fallback for unset keys.
func (s *Store) GetDefault(ctx context.Context, key, fallback string) string {
	if v, ok := s.Get(ctx, key); ok {
		return v
	}
	return fallback
}

func (s *Store) open(ctx context.Context, e Entry) (string, bool) {
	if !e.Encrypted || e.Value == "" {
		return e.Value, true
	}
	if s.cipher == nil {
		log.Warn(ctx).Str("key", e.Key).Msg("encrypted config without encryption key")
		return "", false
	}
	v, err := s.cipher.Decrypt(e.Value)
	if err != nil {
		log.Warn(ctx).Err(err).Str("key", e.Key).Msg("config decrypt failed")
		return "", false
	}
	return v, true
}

func (s *Store) seal(key, value string, encrypted bool) (Entry, error) {
	e := Entry{Key: key, Value: value, Encrypted: encrypted || IsSensitive(key)}
	if !e.Encrypted || value == "" {
		return e, nil
	}
	if s.cipher == nil {
		return Entry{}, ErrNoCipher
	}
	ct, err := s.cipher.Encrypt(value)
	if err != nil {
		return Entry{}, fmt.Errorf("encrypt %s: %w", key, err)
	}
	e.Value = ct
	return e, nil
}

// Set stores value under key, encrypting it when encrypted is set or the
// key is sensitive.
func (s *Store) Set(ctx context.Context, key, value string, encrypted bool) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ErrEmptyKey
	}
	e, err := s.seal(key, value, encrypted)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, e)
}

// SeedDefaults writes every entry of [Defaults] that is not stored yet
// and returns how many were inserted. Existing values are kept.
func (s *Store) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	for _, d := range Defaults {
		e, err := s.seal(d.Key, d.Value, d.Encrypted)
		if err != nil {
			return inserted, err
		}
		ok, err := s.repo.InsertIfAbsent(ctx, e)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
