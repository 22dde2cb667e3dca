package flows

import (
	"context"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Lookup           func(context.Context, string) (*session.Session, error)
	Revoke           func(context.Context, string) error
	RevokeAllForUser func(context.Context, string) error
}

// LogoutResult reports the owner of the revoked session when it was known.
type LogoutResult struct {
	UserID string
	Found  bool
	Err    error
}

// RunLogout revokes sessionID. Unknown ids are not an error.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) LogoutResult {
	var res LogoutResult
	if deps.Lookup != nil {
		sess, err := deps.Lookup(ctx, sessionID)
		if err != nil {
			return LogoutResult{Err: err}
		}
		if sess == nil {
			return res
		}
		res.UserID = sess.UserID
		res.Found = true
	}
	res.Err = deps.Revoke(ctx, sessionID)
	return res
}

// RunLogoutAll revokes every session owned by userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) error {
	return deps.RevokeAllForUser(ctx, userID)
}
