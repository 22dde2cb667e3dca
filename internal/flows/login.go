package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// UnknownClient stands in for the client address in limiter keys when no
// proxy header supplied one.
const UnknownClient = "unknown"

// LoginUserRecord is a flow-local user model used by login.
type LoginUserRecord struct {
	UserID       string
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

// LoginInput carries the submitted credentials and request attributes.
type LoginInput struct {
	Email       string
	Password    string
	IP          string
	UserAgent   string
	ForwardedBy string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User    LoginUserRecord
	Session *session.Session
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	RateLimiterError int
	SessionCreated   int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady        error
	MissingCredentials    error
	InvalidCredentials    error
	LoginRateLimited      error
	SessionCreationFailed error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	SessionTTL time.Duration
	// DummyHash is verified against when the email is unknown so both
	// failure paths cost one key derivation.
	DummyHash string

	Now func() time.Time

	IsBlocked     func(context.Context, string) (bool, error)
	RecordFailure func(context.Context, string) error
	ResetFailures func(context.Context, string) error

	GetUserByEmail  func(context.Context, string) (LoginUserRecord, error)
	IsUserNotFound  func(error) bool
	VerifyPassword  func(context.Context, string, string) (bool, error)
	CreateSession   func(context.Context, string, session.CreateOptions) (*session.Session, error)
	UpdateLastLogin func(context.Context, string, time.Time) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(context.Context, error, string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// LimiterKey builds the "<ip>:<email>" key the login limiter counts under.
func LimiterKey(ip, email string) string {
	if ip == "" {
		ip = UnknownClient
	}
	return ip + ":" + email
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(context.Context, error, string) {}
	}
	if deps.IsUserNotFound == nil {
		deps.IsUserNotFound = func(error) bool { return false }
	}
}

// RunLogin checks the limiter, verifies the password and opens a session.
//
// Limiter failures never block the login. Unknown emails and wrong
// passwords produce the same error and both count against the limiter.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	normalizeLoginDeps(&deps)
	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, deps.Errors.MissingCredentials
	}

	key := LimiterKey(in.IP, email)
	meta := func() map[string]string {
		return map[string]string{"email": email}
	}

	if deps.IsBlocked != nil {
		blocked, err := deps.IsBlocked(ctx, key)
		if err != nil {
			deps.MetricInc(deps.Metrics.RateLimiterError)
			deps.Warn(ctx, err, "login limiter check failed, allowing attempt")
		} else if blocked {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", "", deps.Errors.LoginRateLimited, meta)
			return nil, deps.Errors.LoginRateLimited
		}
	}

	fail := func(userID, reason string) (*LoginResult, error) {
		if deps.RecordFailure != nil {
			if err := deps.RecordFailure(ctx, key); err != nil {
				deps.MetricInc(deps.Metrics.RateLimiterError)
				deps.Warn(ctx, err, "login limiter record failed")
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, "", deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": reason,
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if !deps.IsUserNotFound(err) {
			return nil, err
		}
		if deps.DummyHash != "" {
			if _, verr := deps.VerifyPassword(ctx, in.Password, deps.DummyHash); verr != nil {
				return nil, verr
			}
		}
		return fail("", "user_not_found")
	}

	ok, err := deps.VerifyPassword(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fail(user.UserID, "password_mismatch")
	}

	if deps.ResetFailures != nil {
		if err := deps.ResetFailures(ctx, key); err != nil {
			deps.MetricInc(deps.Metrics.RateLimiterError)
			deps.Warn(ctx, err, "login limiter reset failed")
		}
	}

	opts := session.CreateOptions{
		TTL:       deps.SessionTTL,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}
	if in.ForwardedBy != "" {
		opts.Meta = map[string]string{"forwardedBy": in.ForwardedBy}
	}
	sess, err := deps.CreateSession(ctx, user.UserID, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)

	if deps.UpdateLastLogin != nil {
		if err := deps.UpdateLastLogin(ctx, user.UserID, deps.Now()); err != nil {
			deps.Warn(ctx, err, "update last login failed")
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, sess.ID, nil, meta)

	user.PasswordHash = ""
	return &LoginResult{User: user, Session: sess}, nil
}
