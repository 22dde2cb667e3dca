package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	sessionIDSize  = 32
	resetTokenSize = 32

	// MaxSessionIDLength bounds cookie values accepted as session ids.
	MaxSessionIDLength = 128
)

// SessionID is the raw form of an opaque session identifier.
type SessionID [sessionIDSize]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewResetToken returns a 64-character hex token carrying 32 random bytes.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashResetToken returns the hex SHA-256 of token. Stores keep only this
// digest so a leaked table does not yield usable tokens.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidResetTokenFormat reports whether token looks like NewResetToken output.
func ValidResetTokenFormat(token string) bool {
	if len(token) != resetTokenSize*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
