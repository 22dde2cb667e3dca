package binarystore

import (
	"context"
	"net/http"
	"strings"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type authResultContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine uses it
// for the login limiter key, session records, and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithAuthResult stores the authenticated caller in ctx.
func WithAuthResult(ctx context.Context, res *AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// AuthResultFromContext returns the caller stored by WithAuthResult, or nil.
func AuthResultFromContext(ctx context.Context) *AuthResult {
	if ctx == nil {
		return nil
	}
	res, _ := ctx.Value(authResultContextKey{}).(*AuthResult)
	return res
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// UnknownClientIP is used when no forwarding header is present.
const UnknownClientIP = "unknown"

// Forwarding headers consulted by ClientIP, in priority order. The
// lower-case spelling is what gets recorded in session metadata.
const (
	HeaderForwardedFor   = "x-forwarded-for"
	HeaderRealIP         = "x-real-ip"
	HeaderCFConnectingIP = "cf-connecting-ip"
)

// ClientIP resolves the caller address from proxy headers: the first
// X-Forwarded-For entry, else X-Real-IP, else CF-Connecting-IP, else
// "unknown". The second return value names the header used ("" when none).
func ClientIP(h http.Header) (ip string, source string) {
	if xff := h.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first, HeaderForwardedFor
		}
	}
	if v := strings.TrimSpace(h.Get(HeaderRealIP)); v != "" {
		return v, HeaderRealIP
	}
	if v := strings.TrimSpace(h.Get(HeaderCFConnectingIP)); v != "" {
		return v, HeaderCFConnectingIP
	}
	return UnknownClientIP, ""
}
