package binarystore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/stores"
)

// RequestPasswordReset issues a reset token for email and hands the link
// to the notifier.
//
// The result never reveals whether an account exists: an unknown email
// returns a zero [ResetIssue] and a nil error, and notifier failures are
// logged instead of returned. Outside production the link is also logged
// so it can be used without a mail server.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (ResetIssue, error) {
	if e == nil || !e.flows.Initialized() {
		return ResetIssue{}, ErrEngineNotReady
	}

	issue, err := e.flows.RequestPasswordReset(ctx, email)
	if err != nil {
		return ResetIssue{}, err
	}
	if issue.Token != "" && !e.config.Security.ProductionMode {
		log.Info(ctx).
			Str("user_id", issue.UserID).
			Str("link", issue.Link).
			Time("expires_at", issue.ExpiresAt).
			Msg("password reset link issued")
	}

	return ResetIssue{
		UserID:    issue.UserID,
		Token:     issue.Token,
		Link:      issue.Link,
		ExpiresAt: issue.ExpiresAt,
	}, nil
}

// ConfirmPasswordReset consumes token, stores the hash of newPassword and
// revokes every session of the account. A token is accepted at most once;
// unknown, used and expired tokens return [ErrResetTokenInvalid].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.ConfirmPasswordReset(ctx, strings.TrimSpace(token), newPassword)
}

// ResetLink builds the public reset URL for token.
func (e *Engine) ResetLink(token string) string {
	base := strings.TrimRight(e.config.PasswordReset.BaseURL, "/")
	return base + e.config.PasswordReset.LinkPath + "?token=" + url.QueryEscape(token)
}

// dispatchResetNotification sends the reset message in the background so a
// request for an existing account answers as fast as one for an unknown
// email. It fails only when the engine is closing.
func (e *Engine) dispatchResetNotification(ctx context.Context, user internalflows.PasswordResetUser, link string) error {
	bg := context.WithoutCancel(ctx)
	started := e.goBackground(&e.notifications, func() {
		nctx, cancel := context.WithTimeout(bg, e.config.PasswordReset.NotifyTimeout)
		defer cancel()
		if err := e.notifier.SendPasswordReset(nctx, user.Email, user.Name, link); err != nil {
			e.metricInc(MetricNotifyFailure)
			e.warn(bg, err, "password reset notification failed")
		}
	})
	if !started {
		return ErrEngineNotReady
	}
	return nil
}

func isResetTokenInvalid(err error) bool {
	return errors.Is(err, ErrResetTokenInvalid) || errors.Is(err, stores.ErrResetNotFound)
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	cfg := e.config

	deps := internalflows.PasswordResetDeps{
		Enabled:   cfg.PasswordReset.Enabled && e.resetStore != nil,
		TokenTTL:  cfg.PasswordReset.TokenTTL,
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
		GetUserByEmail: func(ctx context.Context, email string) (internalflows.PasswordResetUser, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			user, err := e.userProvider.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.PasswordResetUser{}, err
			}
			if user == nil {
				return internalflows.PasswordResetUser{}, ErrUserNotFound
			}
			return internalflows.PasswordResetUser{
				UserID: user.ID,
				Email:  user.Email,
				Name:   user.Name,
			}, nil
		},
		IsUserNotFound: func(err error) bool {
			return errors.Is(err, ErrUserNotFound)
		},
		IsTokenInvalid: isResetTokenInvalid,
		BuildLink:      e.ResetLink,
		HashPassword:   e.hashPassword,
		UpdatePasswordHash: func(ctx context.Context, userID, hash string) error {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.userProvider.UpdatePasswordHash(ctx, userID, hash)
		},
		RevokeAllForUser: func(ctx context.Context, userID string) error {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.sessionStore.RevokeAllForUser(ctx, userID)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			NotifyFailure:               int(MetricNotifyFailure),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetReq,
			PasswordResetConfirm: auditEventPasswordResetConf,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:      ErrEngineNotReady,
			InvalidEmail:        ErrInvalidEmail,
			TokenInvalid:        ErrResetTokenInvalid,
			PasswordPolicy:      ErrPasswordPolicy,
			PasswordResetFailed: ErrResetUnavailable,
		},
	}

	if e.resetStore != nil {
		deps.Issue = func(ctx context.Context, userID string, ttl time.Duration) (string, time.Time, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.resetStore.Issue(ctx, userID, ttl)
		}
		deps.Consume = func(ctx context.Context, token string) (string, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.resetStore.Consume(ctx, token)
		}
	}

	if e.notifier != nil {
		deps.Notify = e.dispatchResetNotification
	}

	return deps
}
