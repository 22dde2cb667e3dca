package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Authenticator resolves a session id to its caller.
type Authenticator interface {
	CurrentUser(ctx context.Context, sessionID string) (*binarystore.AuthResult, error)
}

// Authorizer is an [Authenticator] that can check permissions.
type Authorizer interface {
	Authenticator
	Allowed(role binarystore.Role, perm string) bool
}

type failure struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failure{Message: message})
}

// ClientContext records the caller IP (from proxy headers) and User-Agent
// in the request context for the engine.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withClient(r)))
	})
}

func withClient(r *http.Request) context.Context {
	ctx := r.Context()
	ip, _ := binarystore.ClientIP(r.Header)
	ctx = binarystore.WithClientIP(ctx, ip)
	return binarystore.WithUserAgent(ctx, r.UserAgent())
}

// resolve returns the caller already stored by Authenticate, or resolves
// the cookie now.
func resolve(engine Authenticator, r *http.Request) (*binarystore.AuthResult, *http.Request) {
	if res := binarystore.AuthResultFromContext(r.Context()); res != nil {
		return res, r
	}
	if engine == nil {
		return nil, r
	}
	id := session.FromRequest(r)
	if id == "" {
		return nil, r
	}
	ctx := withClient(r)
	res, err := engine.CurrentUser(ctx, id)
	if err != nil || res == nil {
		return nil, r
	}
	return res, r.WithContext(binarystore.WithAuthResult(ctx, res))
}

// Authenticate stores the caller in the request context when the session
// cookie is valid. Requests without one pass through unchanged.
func Authenticate(engine Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, r = resolve(engine, r)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser answers 401 {"ok":false} unless the request carries a valid
// session.
func RequireUser(engine Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, r := resolve(engine, r)
			if res == nil {
				reject(w, http.StatusUnauthorized, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin answers 401 without a valid session and 403 when the
// caller is not an ADMIN.
func RequireAdmin(engine Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, r := resolve(engine, r)
			if res == nil {
				reject(w, http.StatusUnauthorized, "")
				return
			}
			if !res.IsAdmin() {
				reject(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission answers 401 without a valid session and 403 when the
// caller's role does not grant perm.
func RequirePermission(engine Authorizer, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, r := resolve(engine, r)
			if res == nil {
				reject(w, http.StatusUnauthorized, "")
				return
			}
			if !engine.Allowed(res.Role, perm) {
				reject(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
