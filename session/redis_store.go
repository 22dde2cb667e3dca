package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis command failures in [RedisStore].
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionCorrupt is returned when a stored record cannot be decoded.
var ErrSessionCorrupt = errors.New("session record corrupt")

const (
	maxCASRetries = 4

	// minRecordTTL keeps already expired sessions readable long enough to
	// be reported as expired rather than unknown.
	minRecordTTL = time.Minute
)

// RedisStore keeps sessions in Redis under "<prefix>:<id>" with a per-user
// index set "<prefix>u:<userID>" that expires with its longest-lived
// member. Revoked sessions stay in Redis until their natural expiry.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a session store backed by the given Redis client.
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sbs"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func (s *RedisStore) recordTTL(sess *Session, now time.Time) time.Duration {
	if sess.ExpiresAt == nil {
		return 0
	}
	ttl := sess.ExpiresAt.Sub(now)
	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}
	return ttl
}

// Create persists a new session for userID.
//
//	Performance: 1 MULTI (SET + SADD + EXPIRE NX/GT).
func (s *RedisStore) Create(ctx context.Context, userID string, opts CreateOptions) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := New(id, userID, opts, now)
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	ttl := s.recordTTL(sess, now)
	userKey := s.userKey(userID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), data, ttl)
		pipe.SAdd(ctx, userKey, id)
		if ttl > 0 {
			// The index lives as long as its longest-lived member.
			pipe.ExpireNX(ctx, userKey, ttl)
			pipe.ExpireGT(ctx, userKey, ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, nil
}

// Lookup returns the stored session, revoked or expired ones included.
// Unknown ids return (nil, nil).
//
//	Performance: 1 Redis GET.
func (s *RedisStore) Lookup(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.ID = id
	return sess, nil
}

// Touch records activity on a live session. Revoked, expired, or unknown
// sessions are left alone.
func (s *RedisStore) Touch(ctx context.Context, id string, info TouchInfo) error {
	err := s.update(ctx, id, func(sess *Session) bool {
		if !sess.ValidAt(s.now()) {
			return false
		}
		return info.Apply(sess)
	})
	if errors.Is(err, errRecordMissing) {
		return nil
	}
	return err
}

// Revoke marks the session revoked. Unknown ids are ignored.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	err := s.update(ctx, id, revoke)
	if errors.Is(err, errRecordMissing) {
		return nil
	}
	return err
}

func revoke(sess *Session) bool {
	if sess.Revoked {
		return false
	}
	sess.Revoked = true
	return true
}

// RevokeAllForUser revokes every session in the user's index and prunes
// ids whose records already expired.
//
// A session created concurrently with this call may survive it.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var stale []interface{}
	for _, id := range ids {
		found := true
		err := s.update(ctx, id, revoke)
		if errors.Is(err, errRecordMissing) {
			found = false
			err = nil
		}
		if err != nil {
			return err
		}
		if !found {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// SessionIDsForUser returns the ids in the user's index. Entries may refer
// to expired records.
func (s *RedisStore) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping measures Redis round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

var errRecordMissing = errors.New("session record missing")

// update applies mutate under WATCH and writes the result back keeping the
// existing TTL. mutate returns false to skip the write.
func (s *RedisStore) update(ctx context.Context, id string, mutate func(*Session) bool) error {
	key := s.key(id)

	for i := 0; i < maxCASRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := Decode(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
			}
			sess.ID = id

			if !mutate(sess) {
				return nil
			}

			updated, err := Encode(sess)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errRecordMissing
			case errors.Is(err, ErrSessionCorrupt):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
		return nil
	}

	return fmt.Errorf("%w: too many concurrent updates to session", ErrRedisUnavailable)
}

var _ Store = (*RedisStore)(nil)
