package session

import (
	"net/http"
	"time"
)

// CookieName is the cookie carrying the session id.
const CookieName = "sb_session"

// Cookie returns the Set-Cookie value for a new session.
func Cookie(id string, ttl time.Duration, secure bool) *http.Cookie {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie returns a cookie that makes the browser drop the session.
// net/http renders MaxAge -1 as "Max-Age=0".
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "deleted",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetCookie writes the session cookie to w.
func SetCookie(w http.ResponseWriter, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, Cookie(id, ttl, secure))
}

// ClearCookie writes an expired session cookie to w.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, ExpiredCookie(secure))
}

// FromRequest returns the session id carried by r, or "".
func FromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
