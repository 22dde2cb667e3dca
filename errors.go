package binarystore

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the session's user lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrLoginRateLimited is returned when the ip/email pair has exhausted its attempts.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUserNotFound is returned by UserProvider implementations for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrAlreadyInitialized is returned when an ADMIN already exists.
	ErrAlreadyInitialized = errors.New("system already initialized")
	// ErrPasswordPolicy is returned when a new password is too short or too long.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidEmail is returned when an email address is empty or malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrResetTokenInvalid is returned for unknown, used, or expired reset tokens.
	ErrResetTokenInvalid = errors.New("invalid or expired token")
	// ErrResetUnavailable is returned when the reset token store cannot be reached.
	ErrResetUnavailable = errors.New("password reset backend unavailable")
	// ErrSessionNotFound is returned when revoking an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCreationFailed is returned when the session store rejects a new session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrListingUnsupported is returned when the session backend cannot enumerate sessions.
	ErrListingUnsupported = errors.New("session listing not supported by backend")
	// ErrCannotDeleteSelf is returned when an admin tries to delete their own account.
	ErrCannotDeleteSelf = errors.New("cannot delete own account")
	// ErrEngineNotReady is returned when a required dependency was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
)
