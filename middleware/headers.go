package middleware

import (
	"net/http"
	"strings"
)

// ContentSecurityPolicy returns the portal CSP. 'unsafe-eval' is allowed
// only outside production.
func ContentSecurityPolicy(production bool) string {
	script := "script-src 'self' 'unsafe-inline'"
	if !production {
		script += " 'unsafe-eval'"
	}
	return strings.Join([]string{
		"default-src 'self'",
		script,
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: blob:",
		"font-src 'self' data:",
		"connect-src 'self' https: ws: wss:",
		"media-src 'self'",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'self'",
	}, "; ")
}

// SecurityHeaders sets the CSP and basic hardening headers on every
// response.
func SecurityHeaders(production bool) func(http.Handler) http.Handler {
	csp := ContentSecurityPolicy(production)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}
