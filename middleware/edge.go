package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// DefaultPublicPaths are reachable under /admin and /api/admin without a
// session cookie.
var DefaultPublicPaths = []string{
	"/admin/login",
	"/admin/register",
	"/admin/init",
	"/admin/password/reset",
	"/api/admin/auth/login",
	"/api/admin/auth/register",
	"/api/admin/auth/password/",
	"/api/admin/init",
}

const loginPath = "/admin/login"

func isAdminPath(p string) bool {
	return p == "/admin" || strings.HasPrefix(p, "/admin/") ||
		p == "/api/admin" || strings.HasPrefix(p, "/api/admin/")
}

func isPublic(p string, public []string) bool {
	for _, prefix := range public {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(p, prefix) {
				return true
			}
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// EdgeSessionPresence rejects /admin and /api/admin requests that carry
// no session cookie: APIs get 401 JSON, pages are redirected to the login
// page with ?next= set to the original path and query.
//
// Only the cookie's presence is checked. A forged or expired cookie passes
// here and is rejected by the handler guards.
func EdgeSessionPresence(public ...string) func(http.Handler) http.Handler {
	if len(public) == 0 {
		public = DefaultPublicPaths
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if !isAdminPath(p) || isPublic(p, public) || session.FromRequest(r) != "" {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(p, "/api/") {
				reject(w, http.StatusUnauthorized, "Unauthenticated")
				return
			}

			target := p
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(target), http.StatusFound)
		})
	}
}
