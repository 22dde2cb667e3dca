package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	minSaltLength = 16
	minKeyLength  = 16
	maxKeyLength  = 128
	separator     = ":"
)

var (
	// ErrEmptyPassword is returned by Hash for a zero-length password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrInvalidConfig is returned by NewScrypt for unusable cost parameters.
	ErrInvalidConfig = errors.New("invalid scrypt configuration")
)

// Config holds the scrypt cost parameters. They are fixed for the life of
// a deployment; changing them invalidates nothing because Verify derives
// with the length recorded in the stored value.
type Config struct {
	N          int
	R          int
	P          int
	SaltLength int
	KeyLength  int
}

// DefaultConfig returns N=16384, r=8, p=1 with a 16-byte salt and a
// 64-byte derived key.
func DefaultConfig() Config {
	return Config{
		N:          16384,
		R:          8,
		P:          1,
		SaltLength: 16,
		KeyLength:  64,
	}
}

// Scrypt hashes and verifies passwords. It is safe for concurrent use.
type Scrypt struct {
	config Config
}

// NewScrypt validates cfg and returns a hasher.
func NewScrypt(cfg Config) (*Scrypt, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Scrypt{config: cfg}, nil
}

// Hash derives a key from password with a fresh random salt and returns
// "<saltHex>:<derivedKeyHex>". Two calls never return the same string.
func (s *Scrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, s.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	saltHex := hex.EncodeToString(salt)

	key, err := s.derive(password, saltHex, s.config.KeyLength)
	if err != nil {
		return "", err
	}

	return saltHex + separator + hex.EncodeToString(key), nil
}

// Verify reports whether password matches stored. Any malformed stored
// value yields false.
func (s *Scrypt) Verify(password string, stored string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	saltHex, keyHex, found := strings.Cut(stored, separator)
	if !found || saltHex == "" || keyHex == "" || strings.Contains(keyHex, separator) {
		return false
	}

	expected, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}
	if len(expected) < minKeyLength || len(expected) > maxKeyLength {
		return false
	}

	computed, err := s.derive(password, saltHex, len(expected))
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// The salt participates in derivation in its hex text form.
func (s *Scrypt) derive(password, saltHex string, keyLen int) ([]byte, error) {
	return scrypt.Key([]byte(password), []byte(saltHex), s.config.N, s.config.R, s.config.P, keyLen)
}

func validateConfig(cfg Config) error {
	if cfg.N <= 1 || cfg.N&(cfg.N-1) != 0 {
		return errors.Join(ErrInvalidConfig, errors.New("N must be a power of two greater than 1"))
	}
	if cfg.R < 1 || cfg.P < 1 {
		return errors.Join(ErrInvalidConfig, errors.New("r and p must be >= 1"))
	}
	if uint64(cfg.R)*uint64(cfg.P) >= 1<<30 {
		return errors.Join(ErrInvalidConfig, errors.New("r*p must be < 2^30"))
	}
	if cfg.SaltLength < minSaltLength {
		return errors.Join(ErrInvalidConfig, errors.New("salt length must be >= 16"))
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxKeyLength {
		return errors.Join(ErrInvalidConfig, errors.New("key length must be between 16 and 128"))
	}
	return nil
}
