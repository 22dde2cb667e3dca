package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32
	iterations = 10000
	fieldCount = 4
)

var (
	// ErrEmptyMasterKey is returned by New when no master key is configured.
	ErrEmptyMasterKey = errors.New("encryption master key is empty")
	// ErrInvalidFormat is returned by Decrypt for values that are not salt:iv:tag:ciphertext.
	ErrInvalidFormat = errors.New("invalid encrypted format")
	// ErrDecrypt is returned when authentication of the ciphertext fails.
	ErrDecrypt = errors.New("decryption failed")
)

// Cipher encrypts short secrets (configuration values) with AES-256-GCM.
// Each value gets its own random salt and IV; the AES key is derived from
// the master key with PBKDF2-SHA256.
type Cipher struct {
	masterKey []byte
}

// New returns a Cipher bound to masterKey.
func New(masterKey string) (*Cipher, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}
	return &Cipher{masterKey: []byte(masterKey)}, nil
}

// Encrypt returns hex(salt):hex(iv):hex(tag):hex(ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, ":"), nil
}

// Decrypt reverses Encrypt. Tampered or foreign values return ErrDecrypt.
func (c *Cipher) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != fieldCount {
		return "", ErrInvalidFormat
	}

	decoded := make([][]byte, fieldCount)
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		decoded[i] = b
	}
	salt, iv, tag, ct := decoded[0], decoded[1], decoded[2], decoded[3]
	if len(salt) == 0 || len(iv) != ivLength || len(tag) != tagLength {
		return "", ErrInvalidFormat
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	plain, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsEncrypted reports whether value has the shape produced by Encrypt.
// It does not check that the value decrypts.
func IsEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != fieldCount {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, salt, iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivLength)
}
