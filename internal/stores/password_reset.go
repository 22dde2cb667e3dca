package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/internal"
	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1

	maxConsumeRetries = 4
)

var (
	// ErrResetNotFound covers unknown, already consumed and expired tokens.
	ErrResetNotFound = errors.New("reset record not found")
	// ErrResetRedisUnavailable wraps Redis failures.
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetRecord is the Redis value stored under the token digest.
type PasswordResetRecord struct {
	UserID    string
	CreatedAt int64
	ExpiresAt int64
}

// PasswordResetStore keeps single-use reset tokens in Redis. Only the
// SHA-256 digest of a token is used as the key.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string) *PasswordResetStore {
	if prefix == "" {
		prefix = "sbr"
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *PasswordResetStore) key(token string) string {
	return s.prefix + ":" + internal.HashResetToken(token)
}

// Issue generates a token for userID valid for ttl.
func (s *PasswordResetStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("reset ttl must be positive")
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	encoded, err := encodePasswordResetRecord(&PasswordResetRecord{
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	return token, expiresAt, nil
}

// Consume deletes the record for token and returns its user id. Of any
// number of concurrent calls with the same token at most one succeeds.
func (s *PasswordResetStore) Consume(ctx context.Context, token string) (string, error) {
	if !internal.ValidResetTokenFormat(token) {
		return "", ErrResetNotFound
	}
	key := s.key(token)

	for i := 0; i < maxConsumeRetries; i++ {
		var userID string

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasswordResetRecord(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			if s.now().Unix() >= record.ExpiresAt {
				return ErrResetNotFound
			}

			userID = record.UserID
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrResetNotFound):
				return "", ErrResetNotFound
			default:
				return "", fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return userID, nil
	}

	// Every retry lost the race, so another caller consumed the token.
	return "", ErrResetNotFound
}

func encodePasswordResetRecord(record *PasswordResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	record := &PasswordResetRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	return record, nil
}
