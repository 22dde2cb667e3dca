package session

import (
	"context"
	"time"
)

// DefaultTTL is the lifetime the engine configures for new sessions.
const DefaultTTL = 7 * 24 * time.Hour

// Session is a server-side login record referenced by an opaque id.
//
// A session is valid while it is not revoked and ExpiresAt (when set) is in
// the future. Revocation and expiry are terminal.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastAccessAt time.Time         `json:"lastAccessAt"`
	ExpiresAt    *time.Time        `json:"expiresAt"`
	Revoked      bool              `json:"revoked"`
	IP           string            `json:"ip,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// ValidAt reports whether s can authenticate a request at now.
func (s *Session) ValidAt(now time.Time) bool {
	if s == nil || s.Revoked {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// CreateOptions carries the request attributes recorded on a new session.
// A TTL <= 0 creates a session that is already expired.
type CreateOptions struct {
	TTL       time.Duration
	IP        string
	UserAgent string
	Meta      map[string]string
}

// TouchInfo is applied to a session on each authenticated request. Empty
// IP and UserAgent leave the stored values untouched.
type TouchInfo struct {
	At        time.Time
	IP        string
	UserAgent string
}

// Store persists sessions.
//
// Lookup returns (nil, nil) for unknown ids. Revoke and RevokeAllForUser
// are idempotent. Implementations never delete a session as part of
// normal operation.
type Store interface {
	Create(ctx context.Context, userID string, opts CreateOptions) (*Session, error)
	Lookup(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, info TouchInfo) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Listing is a session row joined with its owner's email for admin views.
type Listing struct {
	Session
	UserEmail string `json:"userEmail"`
}

// ListFilter selects sessions for admin listing. EmailContains matches
// case-insensitively. Limit <= 0 returns every matching row.
type ListFilter struct {
	EmailContains string
	Revoked       *bool
	Offset        int
	Limit         int
}

// Lister is implemented by stores that can enumerate sessions.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]Listing, int, error)
}

// Apply computes the session state after a touch. It reports whether
// anything changed.
func (info TouchInfo) Apply(s *Session) bool {
	changed := false
	if !info.At.IsZero() && info.At.After(s.LastAccessAt) {
		s.LastAccessAt = info.At
		changed = true
	}
	if info.IP != "" && info.IP != s.IP {
		s.IP = info.IP
		changed = true
	}
	if info.UserAgent != "" && info.UserAgent != s.UserAgent {
		s.UserAgent = info.UserAgent
		changed = true
	}
	return changed
}

// New builds a session record for userID. The id must come from NewID.
func New(id, userID string, opts CreateOptions, now time.Time) *Session {
	expires := now
	if opts.TTL > 0 {
		expires = now.Add(opts.TTL)
	}

	var meta map[string]string
	if len(opts.Meta) > 0 {
		meta = make(map[string]string, len(opts.Meta))
		for k, v := range opts.Meta {
			meta[k] = v
		}
	}

	return &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpiresAt:    &expires,
		IP:           opts.IP,
		UserAgent:    opts.UserAgent,
		Meta:         meta,
	}
}
