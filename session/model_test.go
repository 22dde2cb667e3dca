package session

import (
	"testing"
	"time"
)

func TestValidAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	cases := []struct {
		name string
		sess *Session
		want bool
	}{
		{"nil", nil, false},
		{"no expiry", &Session{}, true},
		{"future expiry", &Session{ExpiresAt: &future}, true},
		{"past expiry", &Session{ExpiresAt: &past}, false},
		{"expiry equals now", &Session{ExpiresAt: &now}, false},
		{"revoked", &Session{Revoked: true, ExpiresAt: &future}, false},
	}
	for _, tc := range cases {
		if got := tc.sess.ValidAt(now); got != tc.want {
			t.Fatalf("%s: ValidAt = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTouchInfoApply(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	sess := &Session{LastAccessAt: base, IP: "a", UserAgent: "ua"}

	if (TouchInfo{At: base.Add(-time.Second)}).Apply(sess) {
		t.Fatal("expected older touch to be ignored")
	}
	if !(TouchInfo{At: base.Add(time.Second), IP: "b"}).Apply(sess) {
		t.Fatal("expected newer touch to apply")
	}
	if sess.IP != "b" || sess.UserAgent != "ua" {
		t.Fatalf("unexpected session after touch: %+v", sess)
	}
	if (TouchInfo{IP: "b", UserAgent: "ua"}).Apply(sess) {
		t.Fatal("expected identical values to be a no-op")
	}
}

func TestNewCopiesMeta(t *testing.T) {
	meta := map[string]string{"k": "v"}
	sess := New("id", "u", CreateOptions{Meta: meta}, time.Now())
	meta["k"] = "changed"
	if sess.Meta["k"] != "v" {
		t.Fatal("expected meta to be copied")
	}
}

func TestNewNonPositiveTTLIsExpired(t *testing.T) {
	now := time.Now()
	for _, ttl := range []time.Duration{0, -time.Minute} {
		sess := New("id", "u", CreateOptions{TTL: ttl}, now)
		if sess.ExpiresAt == nil || !sess.ExpiresAt.Equal(now) {
			t.Fatalf("ttl %s: expected expiresAt == now, got %v", ttl, sess.ExpiresAt)
		}
		if sess.ValidAt(now) {
			t.Fatalf("ttl %s: expected session to be invalid", ttl)
		}
	}
}
