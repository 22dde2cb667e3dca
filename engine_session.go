package binarystore

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// ValidateSession returns the session for id when it exists, is not
// revoked and has not expired. Every other outcome, including a store
// failure, returns [ErrUnauthorized].
//
// On success a lastAccessAt update is scheduled in the background. It is
// not ordered with respect to later reads.
func (e *Engine) ValidateSession(ctx context.Context, id string) (*session.Session, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flows.Validate(ctx, id)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case internalflows.ValidateFailureNone:
		e.metricInc(MetricSessionValidated)
		return res.Session, nil
	case internalflows.ValidateFailureStore:
		e.metricInc(MetricSessionStoreError)
		e.warn(ctx, res.Err, "session lookup failed, treating request as unauthenticated")
		return nil, ErrUnauthorized
	default:
		e.metricInc(MetricSessionRejected)
		return nil, ErrUnauthorized
	}
}

// CurrentUser resolves id to the calling user. It returns [ErrUnauthorized]
// when the session is invalid or its user no longer exists.
func (e *Engine) CurrentUser(ctx context.Context, id string) (*AuthResult, error) {
	sess, err := e.ValidateSession(ctx, id)
	if err != nil {
		return nil, err
	}

	lctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	user, err := e.userProvider.GetUserByID(lctx, sess.UserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.warn(ctx, err, "user lookup for session failed")
		}
		return nil, ErrUnauthorized
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	user.PasswordHash = ""
	res := &AuthResult{
		User:    user,
		Session: sess,
		Role:    user.Role,
	}
	if e.roleManager != nil {
		if mask, ok := e.roleManager.GetMask(string(user.Role)); ok {
			res.Mask = mask
		}
	}
	return res, nil
}

// RequireUser is [Engine.CurrentUser] for handlers that need a caller.
func (e *Engine) RequireUser(ctx context.Context, id string) (*AuthResult, error) {
	return e.CurrentUser(ctx, id)
}

// RequireAdmin returns [ErrUnauthorized] without a valid session and
// [ErrForbidden] when the caller is not an ADMIN.
func (e *Engine) RequireAdmin(ctx context.Context, id string) (*AuthResult, error) {
	res, err := e.CurrentUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsAdmin() {
		return nil, ErrForbidden
	}
	return res, nil
}

// Logout revokes the session id. Unknown ids are not an error.
func (e *Engine) Logout(ctx context.Context, id string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if !session.WellFormedID(id) {
		return nil
	}

	res := e.flows.Logout(ctx, id)
	if res.Err != nil {
		e.emitAudit(ctx, auditEventLogout, false, res.UserID, id, res.Err, nil)
		return res.Err
	}
	if res.Found {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.UserID, id, nil, nil)
	}
	return nil
}

// RevokeSession revokes a session on behalf of actorID (an admin).
// It returns [ErrSessionNotFound] for unknown ids.
func (e *Engine) RevokeSession(ctx context.Context, actorID, id string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if id == "" {
		return ErrSessionNotFound
	}

	res := e.flows.Logout(ctx, id)
	if res.Err != nil {
		return res.Err
	}
	if !res.Found {
		return ErrSessionNotFound
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAdminAudit(ctx, auditEventSessionRevoked, actorID, res.UserID, id, "session", id, nil)
	return nil
}

// RevokeAllForUser revokes every session of userID on behalf of actorID.
func (e *Engine) RevokeAllForUser(ctx context.Context, actorID, userID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	if err := e.flows.LogoutAll(ctx, userID); err != nil {
		e.emitAdminAudit(ctx, auditEventSessionsRevokedAll, actorID, userID, "", "user", userID, err)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAdminAudit(ctx, auditEventSessionsRevokedAll, actorID, userID, "", "user", userID, nil)
	return nil
}

// ListSessions pages through sessions for the admin view. It returns
// [ErrListingUnsupported] when the session backend cannot enumerate.
func (e *Engine) ListSessions(ctx context.Context, filter session.ListFilter) ([]session.Listing, int, error) {
	if e == nil {
		return nil, 0, ErrEngineNotReady
	}
	if e.sessionLister == nil {
		return nil, 0, ErrListingUnsupported
	}

	ctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	return e.sessionLister.List(ctx, filter)
}

// CanListSessions reports whether the session backend supports listing.
func (e *Engine) CanListSessions() bool {
	return e != nil && e.sessionLister != nil
}

// SessionTTL is the lifetime of new sessions and the cookie Max-Age.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Session.TTL
}

// SecureCookies reports whether the session cookie carries Secure.
func (e *Engine) SecureCookies() bool {
	return e.config.Security.ProductionMode
}

// touchSession records the access in the background. The touch gets its
// own deadline and survives cancellation of the request context.
func (e *Engine) touchSession(ctx context.Context, sess *session.Session) {
	info := session.TouchInfo{
		At:        e.now(),
		UserAgent: userAgentFromContext(ctx),
	}
	if ip := clientIPFromContext(ctx); ip != UnknownClientIP {
		info.IP = ip
	}

	preview := *sess
	if !info.Apply(&preview) {
		return
	}

	id := sess.ID
	bg := context.WithoutCancel(ctx)
	e.goBackground(&e.touches, func() {
		tctx, cancel := context.WithTimeout(bg, e.config.Session.TouchTimeout)
		defer cancel()
		if err := e.sessionStore.Touch(tctx, id, info); err != nil {
			e.metricInc(MetricSessionTouchFailure)
			log.Debug(tctx).Err(err).Msg("session touch failed")
		}
	})
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		Now:        e.now,
		WellFormed: session.WellFormedID,
		Lookup: func(ctx context.Context, id string) (*session.Session, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.sessionStore.Lookup(ctx, id)
		},
		Touch: e.touchSession,
	}
}

func (e *Engine) logoutFlowDeps() internalflows.LogoutDeps {
	return internalflows.LogoutDeps{
		Lookup: func(ctx context.Context, id string) (*session.Session, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.sessionStore.Lookup(ctx, id)
		},
		Revoke: func(ctx context.Context, id string) error {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.sessionStore.Revoke(ctx, id)
		},
		RevokeAllForUser: func(ctx context.Context, userID string) error {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.sessionStore.RevokeAllForUser(ctx, userID)
		},
	}
}
