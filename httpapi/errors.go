package httpapi

import (
	"errors"
	"net/http"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

// genericMessage replaces the message of every 5xx response.
const genericMessage = "Internal server error"

// Error is a handler failure with the status and client-safe message to
// answer with.
type Error struct {
	Status  int
	Message string
	Err     error
}

// NewError returns an *Error. err may be nil.
func NewError(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	text := http.StatusText(e.Status)
	if e.Message != "" {
		text += ": " + e.Message
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

type errorBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// body renders e. Details carry the wrapped error text and are dropped in
// production.
func (e *Error) body(production bool) errorBody {
	out := errorBody{Message: e.Message}
	if e.Status >= http.StatusInternalServerError {
		out.Message = genericMessage
	}
	if !production && e.Err != nil {
		out.Details = e.Err.Error()
	}
	return out
}

// asError maps engine sentinels to responses. Anything unrecognized is a
// 500.
func asError(err error) *Error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr
	}

	switch {
	case errors.Is(err, binarystore.ErrMissingCredentials):
		return NewError(http.StatusBadRequest, "Missing credentials", err)
	case errors.Is(err, binarystore.ErrInvalidCredentials):
		return NewError(http.StatusUnauthorized, "Invalid credentials", err)
	case errors.Is(err, binarystore.ErrLoginRateLimited):
		return NewError(http.StatusTooManyRequests, "Too many attempts, try later", err)
	case errors.Is(err, binarystore.ErrUnauthorized):
		return NewError(http.StatusUnauthorized, "", err)
	case errors.Is(err, binarystore.ErrForbidden):
		return NewError(http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, binarystore.ErrInvalidEmail):
		return NewError(http.StatusBadRequest, "Invalid email", err)
	case errors.Is(err, binarystore.ErrPasswordPolicy):
		return NewError(http.StatusBadRequest, "Password does not meet requirements", err)
	case errors.Is(err, binarystore.ErrResetTokenInvalid):
		return NewError(http.StatusBadRequest, "Invalid or expired token", err)
	case errors.Is(err, binarystore.ErrAccountExists):
		return NewError(http.StatusConflict, "User already exists", err)
	case errors.Is(err, binarystore.ErrAlreadyInitialized):
		return NewError(http.StatusBadRequest, "System already initialized", err)
	case errors.Is(err, binarystore.ErrSessionNotFound):
		return NewError(http.StatusNotFound, "Session not found", err)
	case errors.Is(err, binarystore.ErrUserNotFound):
		return NewError(http.StatusNotFound, "User not found", err)
	case errors.Is(err, binarystore.ErrCannotDeleteSelf):
		return NewError(http.StatusBadRequest, "Cannot delete your own account", err)
	case errors.Is(err, binarystore.ErrListingUnsupported):
		return NewError(http.StatusNotImplemented, "Session listing not supported", err)
	default:
		return NewError(http.StatusInternalServerError, genericMessage, err)
	}
}
