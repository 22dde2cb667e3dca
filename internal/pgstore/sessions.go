package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

const sessionColumns = `s.id, s.user_id, s.created_at, s.last_access_at, s.expires_at, s.revoked, s.ip, s.user_agent, s.meta`

// Sessions is the authoritative session store. Rows are only flagged as
// revoked, never deleted, so the admin view keeps full history.
type Sessions struct {
	db  DBTX
	now func() time.Time
}

func NewSessions(db DBTX) *Sessions {
	return &Sessions{db: db, now: time.Now}
}

func encodeMeta(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}

func scanSession(row interface{ Scan(...any) error }, extra ...any) (*session.Session, error) {
	var (
		s       session.Session
		expires sql.NullTime
		meta    []byte
	)
	dest := append([]any{&s.ID, &s.UserID, &s.CreatedAt, &s.LastAccessAt, &expires, &s.Revoked, &s.IP, &s.UserAgent, &meta}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.ExpiresAt = timePtr(expires)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return nil, fmt.Errorf("session meta: %w", err)
		}
	}
	return &s, nil
}

func (r *Sessions) Create(ctx context.Context, userID string, opts session.CreateOptions) (*session.Session, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}
	s := session.New(id, userID, opts, r.now().UTC())
	meta, err := encodeMeta(s.Meta)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO sessions (id, user_id, created_at, last_access_at, expires_at, revoked, ip, user_agent, meta)
		 VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8)
		 `
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.CreatedAt, s.LastAccessAt, nullTime(s.ExpiresAt), s.IP, s.UserAgent, meta)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Lookup returns (nil, nil) for unknown ids.
func (r *Sessions) Lookup(ctx context.Context, id string) (*session.Session, error) {
	query :=
		`SELECT ` + sessionColumns + ` FROM sessions s
		 WHERE s.id = $1
		 `
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// Touch moves lastAccessAt forward and replaces ip and user agent when
// provided. Concurrent touches resolve last writer wins.
func (r *Sessions) Touch(ctx context.Context, id string, info session.TouchInfo) error {
	query :=
		`UPDATE sessions SET
		   last_access_at = GREATEST(last_access_at, $2),
		   ip = COALESCE(NULLIF($3, ''), ip),
		   user_agent = COALESCE(NULLIF($4, ''), user_agent)
		 WHERE id = $1
		 `
	at := info.At
	if at.IsZero() {
		at = r.now()
	}
	if _, err := r.db.ExecContext(ctx, query, id, at.UTC(), info.IP, info.UserAgent); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Sessions) Revoke(ctx context.Context, id string) error {
	query :=
		`UPDATE sessions SET revoked = true
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Sessions) RevokeAllForUser(ctx context.Context, userID string) error {
	query :=
		`UPDATE sessions SET revoked = true
		 WHERE user_id = $1 AND revoked = false
		 `
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func listWhere(filter session.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.EmailContains != "" {
		args = append(args, filter.EmailContains)
		// Substring match; % and _ in the filter are literal.
		conds = append(conds, "strpos(lower(u.email), lower($"+strconv.Itoa(len(args))+")) > 0")
	}
	if filter.Revoked != nil {
		args = append(args, *filter.Revoked)
		conds = append(conds, "s.revoked = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of sessions, newest first, joined with the owner
// email, and the total number of matching rows.
func (r *Sessions) List(ctx context.Context, filter session.ListFilter) ([]session.Listing, int, error) {
	where, args := listWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM sessions s JOIN users u ON u.id = s.user_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	query := `SELECT ` + sessionColumns + `, u.email FROM sessions s JOIN users u ON u.id = s.user_id` +
		where + ` ORDER BY s.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []session.Listing
	for rows.Next() {
		var email string
		s, err := scanSession(rows, &email)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		out = append(out, session.Listing{Session: *s, UserEmail: email})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return out, total, nil
}

var (
	_ session.Store  = (*Sessions)(nil)
	_ session.Lister = (*Sessions)(nil)
)
