package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type PasswordResetUser struct {
	UserID string
	Email  string
	Name   string
}

// PasswordResetIssue describes an issued token. It is the zero value when
// the email did not match an account.
type PasswordResetIssue struct {
	UserID    string
	Token     string
	Link      string
	ExpiresAt time.Time
}

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	NotifyFailure               int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
}

type PasswordResetErrors struct {
	EngineNotReady      error
	InvalidEmail        error
	TokenInvalid        error
	PasswordPolicy      error
	PasswordResetFailed error
}

type PasswordResetDeps struct {
	Enabled   bool
	TokenTTL  time.Duration
	MinLength int
	MaxLength int

	GetUserByEmail func(context.Context, string) (PasswordResetUser, error)
	IsUserNotFound func(error) bool

	Issue          func(context.Context, string, time.Duration) (string, time.Time, error)
	Consume        func(context.Context, string) (string, error)
	IsTokenInvalid func(error) bool
	BuildLink      func(string) string
	Notify         func(context.Context, PasswordResetUser, string) error

	HashPassword       func(context.Context, string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error
	RevokeAllForUser   func(context.Context, string) error

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)
	Warn      func(context.Context, error, string)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
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
	if deps.IsTokenInvalid == nil {
		deps.IsTokenInvalid = func(error) bool { return false }
	}
	if deps.BuildLink == nil {
		deps.BuildLink = func(string) string { return "" }
	}
}

// RunRequestPasswordReset issues a token for email and hands the link to
// Notify, which must not wait for delivery. An unknown email yields a zero
// issue and a nil error so the caller's response cannot reveal whether the
// account exists. Notify failures are reported through Warn only.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (PasswordResetIssue, error) {
	normalizePasswordResetDeps(&deps)
	if !deps.Enabled {
		return PasswordResetIssue{}, nil
	}
	if deps.GetUserByEmail == nil || deps.Issue == nil {
		return PasswordResetIssue{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" {
		return PasswordResetIssue{}, deps.Errors.InvalidEmail
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !deps.IsUserNotFound(err) {
			return PasswordResetIssue{}, err
		}
		deps.MetricInc(deps.Metrics.PasswordResetRequest)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"email":            email,
				"enumeration_safe": "true",
			}
		})
		return PasswordResetIssue{}, nil
	}

	token, expiresAt, err := deps.Issue(ctx, user.UserID, deps.TokenTTL)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.UserID, "", err, nil)
		return PasswordResetIssue{}, fmt.Errorf("%w: %v", deps.Errors.PasswordResetFailed, err)
	}

	issue := PasswordResetIssue{
		UserID:    user.UserID,
		Token:     token,
		Link:      deps.BuildLink(token),
		ExpiresAt: expiresAt,
	}

	if deps.Notify != nil {
		if err := deps.Notify(ctx, user, issue.Link); err != nil {
			deps.MetricInc(deps.Metrics.NotifyFailure)
			deps.Warn(ctx, err, "password reset notification failed")
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return issue, nil
}

// CheckPasswordPolicy enforces the configured length bounds.
func CheckPasswordPolicy(pw string, minLength, maxLength int, policyErr error) error {
	if len(pw) < minLength || (maxLength > 0 && len(pw) > maxLength) {
		return policyErr
	}
	return nil
}

// RunConfirmPasswordReset consumes token, stores the new password hash and
// revokes every session of the owner. The policy check runs first so a
// rejected password does not burn the token.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	fail := func(userID string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, userID, "", err, nil)
		return err
	}

	if !deps.Enabled || token == "" {
		return fail("", deps.Errors.TokenInvalid)
	}
	if deps.Consume == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}
	if err := CheckPasswordPolicy(newPassword, deps.MinLength, deps.MaxLength, deps.Errors.PasswordPolicy); err != nil {
		return fail("", err)
	}

	userID, err := deps.Consume(ctx, token)
	if err != nil {
		if deps.IsTokenInvalid(err) {
			return fail("", deps.Errors.TokenInvalid)
		}
		return fail("", fmt.Errorf("%w: %v", deps.Errors.PasswordResetFailed, err))
	}

	hash, err := deps.HashPassword(ctx, newPassword)
	if err != nil {
		return fail(userID, fmt.Errorf("%w: %v", deps.Errors.PasswordResetFailed, err))
	}
	if err := deps.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fail(userID, fmt.Errorf("%w: %v", deps.Errors.PasswordResetFailed, err))
	}

	if deps.RevokeAllForUser != nil {
		if err := deps.RevokeAllForUser(ctx, userID); err != nil {
			deps.Warn(ctx, err, "revoke sessions after password reset failed")
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, userID, "", nil, nil)
	return nil
}
