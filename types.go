package binarystore

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/E8A281E6ACA2/BinaryStore/internal/audit"
	"github.com/E8A281E6ACA2/BinaryStore/permission"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Role is the coarse account role stored with each user.
type Role string

const (
	// RoleUser is assigned to self-registered accounts.
	RoleUser Role = "USER"
	// RoleAdmin may manage sessions, users and system settings.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the account record returned by a [UserProvider].
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// PublicUser is the subset of [User] returned to HTTP clients.
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role,omitempty"`
}

// Public strips credentials from u. The role is omitted; callers that need
// it set it explicitly.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
}

// UserProvider is the account datastore used by the engine.
//
// GetUserByEmail and GetUserByID return [ErrUserNotFound] for unknown
// users. CreateUser returns [ErrAccountExists] when the email is taken.
// DeleteUser removes the user together with its sessions and reset
// tokens.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID string) (*User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	DeleteUser(ctx context.Context, userID string) error
	AdminExists(ctx context.Context) (bool, error)
}

// ResetStore persists single-use password reset tokens.
//
// Issue returns the plaintext token; only a digest needs to be stored.
// Consume returns the owning user id exactly once for a token that is
// neither used nor expired; every other case is an error.
type ResetStore interface {
	Issue(ctx context.Context, userID string, ttl time.Duration) (token string, expiresAt time.Time, err error)
	Consume(ctx context.Context, token string) (userID string, err error)
}

// Notifier delivers out-of-band messages to users.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

// AuthResult describes the authenticated caller of a request.
type AuthResult struct {
	User    *User
	Session *session.Session
	Role    Role
	Mask    permission.Mask64
}

// UserID returns the caller's id, or "" for a nil result.
func (a *AuthResult) UserID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (a *AuthResult) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// LoginRequest is the input for [Engine.Login]. IP and UserAgent are
// recorded on the new session; ForwardedBy names the proxy header the IP
// came from.
type LoginRequest struct {
	Email       string
	Password    string
	IP          string
	UserAgent   string
	ForwardedBy string
}

// LoginResult is returned by [Engine.Login] and [Engine.Register].
type LoginResult struct {
	User    *User
	Session *session.Session
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email     string
	Password  string
	Name      string
	IP        string
	UserAgent string
}

// InitializeAdminRequest is the input for [Engine.InitializeAdmin].
type InitializeAdminRequest struct {
	Name     string
	Email    string
	Password string
}

// ResetIssue describes an issued reset token. It is the zero value when
// the email did not match an account.
type ResetIssue struct {
	UserID    string
	Token     string
	Link      string
	ExpiresAt time.Time
}

// Issued reports whether a token was actually created.
func (r ResetIssue) Issued() bool {
	return r.Token != ""
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink is an [AuditSink] that writes events through zerolog.
type LoggerSink = internalaudit.LoggerSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink creates a [LoggerSink] writing to logger.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}
