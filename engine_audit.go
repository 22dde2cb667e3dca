package binarystore

import (
	"context"
	"errors"

	"github.com/E8A281E6ACA2/BinaryStore/internal/rate"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLogout             = "logout"
	auditEventSessionRevoked     = "session_revoked"
	auditEventSessionsRevokedAll = "sessions_revoked_all"
	auditEventPasswordResetReq   = "password_reset_request"
	auditEventPasswordResetConf  = "password_reset_confirm"
	auditEventAccountCreated     = "account_created"
	auditEventAdminInitialized   = "admin_initialized"
	auditEventUserDeleted        = "user_deleted"
)

// Admin log actions written for admin-initiated events.
const (
	AdminActionRevokeSession     = "revoke_session"
	AdminActionRevokeAllSessions = "revoke_all_sessions"
	AdminActionDeleteUser        = "delete_user"
)

// AdminAction maps an audit event type to its admin log action, or "".
func AdminAction(eventType string) string {
	switch eventType {
	case auditEventSessionRevoked:
		return AdminActionRevokeSession
	case auditEventSessionsRevokedAll:
		return AdminActionRevokeAllSessions
	case auditEventUserDeleted:
		return AdminActionDeleteUser
	default:
		return ""
	}
}

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized          AuditErrorCode = "unauthorized"
	auditErrForbidden             AuditErrorCode = "forbidden"
	auditErrInvalidCredentials    AuditErrorCode = "invalid_credentials"
	auditErrMissingCredentials    AuditErrorCode = "missing_credentials"
	auditErrRateLimited           AuditErrorCode = "rate_limited"
	auditErrInvalidToken          AuditErrorCode = "invalid_token"
	auditErrSessionNotFound       AuditErrorCode = "session_not_found"
	auditErrUserNotFound          AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy        AuditErrorCode = "password_policy"
	auditErrInvalidEmail          AuditErrorCode = "invalid_email"
	auditErrSessionCreationFailed AuditErrorCode = "session_creation_failed"
	auditErrDuplicate             AuditErrorCode = "duplicate"
	auditErrAlreadyInitialized    AuditErrorCode = "already_initialized"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitAdminAudit records an action performed by actorID on another
// resource.
func (e *Engine) emitAdminAudit(
	ctx context.Context,
	eventType string,
	actorID string,
	userID string,
	sessionID string,
	resourceType string,
	resourceID string,
	err error,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		EventType:    eventType,
		UserID:       userID,
		ActorID:      actorID,
		SessionID:    sessionID,
		IP:           clientIPFromContext(ctx),
		UserAgent:    userAgentFromContext(ctx),
		Success:      err == nil,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrCannotDeleteSelf):
		return auditErrForbidden
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrMissingCredentials):
		return auditErrMissingCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreationFailed
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAlreadyInitialized):
		return auditErrAlreadyInitialized
	case errors.Is(err, ErrResetUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
