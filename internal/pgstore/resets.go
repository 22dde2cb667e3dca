package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal"
)

// Resets stores password reset tokens by SHA-256 digest. It implements
// [binarystore.ResetStore].
type Resets struct {
	db  DBTX
	now func() time.Time
}

func NewResets(db DBTX) *Resets {
	return &Resets{db: db, now: time.Now}
}

func (r *Resets) Issue(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("reset ttl must be positive")
	}
	token, err := internal.NewResetToken()
	if err != nil {
		return "", time.Time{}, err
	}

	now := r.now().UTC()
	expiresAt := now.Add(ttl)
	query :=
		`INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, used, created_at)
		 VALUES ($1, $2, $3, false, $4)
		 `
	if _, err := r.db.ExecContext(ctx, query, internal.HashResetToken(token), userID, expiresAt, now); err != nil {
		return "", time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return token, expiresAt, nil
}

// Consume marks token used and returns its owner in one statement, so
// concurrent requests with the same token have exactly one winner.
func (r *Resets) Consume(ctx context.Context, token string) (string, error) {
	if !internal.ValidResetTokenFormat(token) {
		return "", binarystore.ErrResetTokenInvalid
	}

	query :=
		`UPDATE password_reset_tokens SET used = true
		 WHERE token_hash = $1 AND used = false AND expires_at > now()
		 RETURNING user_id
		 `
	var userID string
	if err := r.db.QueryRowContext(ctx, query, internal.HashResetToken(token)).Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", binarystore.ErrResetTokenInvalid
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

// PurgeExpired deletes used tokens and tokens that expired before cutoff.
func (r *Resets) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM password_reset_tokens
		 WHERE used = true OR expires_at < $1
		 `
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

var _ binarystore.ResetStore = (*Resets)(nil)
