package flows

import (
	"context"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureNotFound
	ValidateFailureRevoked
	ValidateFailureExpired
	ValidateFailureStore
)

// ValidateResult carries either the valid session or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Session *session.Session
}

// ValidateDeps captures session validation dependencies.
type ValidateDeps struct {
	Now        func() time.Time
	WellFormed func(string) bool
	Lookup     func(context.Context, string) (*session.Session, error)
	// Touch schedules the lastAccessAt update for a valid session. It must
	// not block.
	Touch func(context.Context, *session.Session)
}

// RunValidate resolves id to a session that is present, not revoked and
// not expired. Store errors are a failure, never a success.
func RunValidate(ctx context.Context, id string, deps ValidateDeps) ValidateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.WellFormed != nil && !deps.WellFormed(id) {
		return ValidateResult{Failure: ValidateFailureMalformed}
	}

	sess, err := deps.Lookup(ctx, id)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err}
	}
	if sess == nil {
		return ValidateResult{Failure: ValidateFailureNotFound}
	}
	if sess.Revoked {
		return ValidateResult{Failure: ValidateFailureRevoked}
	}
	if !sess.ValidAt(deps.Now()) {
		return ValidateResult{Failure: ValidateFailureExpired}
	}

	if deps.Touch != nil {
		deps.Touch(ctx, sess)
	}
	return ValidateResult{Session: sess}
}
