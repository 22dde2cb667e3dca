package binarystore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

func loginAs(t *testing.T, te *testEngine, email, pw string) *session.Session {
	t.Helper()
	res, err := te.Login(context.Background(), LoginRequest{Email: email, Password: pw})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res.Session
}

func TestValidateSessionExpired(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	for _, ttl := range []time.Duration{0, -time.Second, -time.Hour} {
		sess, err := te.sessionStore.Create(ctx, "u1", session.CreateOptions{TTL: ttl})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := te.ValidateSession(ctx, sess.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("ttl %s: expected ErrUnauthorized, got %v", ttl, err)
		}
	}
}

func TestValidateSessionAfterClockPassesExpiry(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	sess, err := te.sessionStore.Create(ctx, "u1", session.CreateOptions{TTL: time.Hour})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	te.flows = te.flowsAt(sess.ExpiresAt.Add(time.Second))

	if _, err := te.ValidateSession(ctx, sess.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized past expiry, got %v", err)
	}
}

func TestValidateSessionRevoked(t *testing.T) {
	te := newTestEngine(t)
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")
	ctx := context.Background()

	if _, err := te.ValidateSession(ctx, sess.ID); err != nil {
		t.Fatalf("expected valid session before revoke: %v", err)
	}
	if err := te.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := te.ValidateSession(ctx, sess.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}

	stored, err := te.sessionStore.Lookup(ctx, sess.ID)
	if err != nil || stored == nil || !stored.Revoked {
		t.Fatalf("revoked record should be kept, got %+v err=%v", stored, err)
	}
}

func TestValidateSessionUnknownAndMalformed(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	id, err := session.NewID()
	if err != nil {
		t.Fatal(err)
	}
	for _, candidate := range []string{"", "not-a-session", id} {
		if _, err := te.ValidateSession(ctx, candidate); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%q: expected ErrUnauthorized, got %v", candidate, err)
		}
	}
}

func TestValidateSessionFailsClosedOnStoreError(t *testing.T) {
	te := newTestEngine(t)
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")

	te.mr.Close()

	if _, err := te.ValidateSession(context.Background(), sess.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on store failure, got %v", err)
	}
	if got := te.MetricsSnapshot().Counters[MetricSessionStoreError]; got != 1 {
		t.Fatalf("expected one store error metric, got %d", got)
	}
}

func TestValidateSessionTouchesInBackground(t *testing.T) {
	te := newTestEngine(t)
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")

	later := sess.LastAccessAt.Add(time.Minute)
	te.now = func() time.Time { return later }
	te.flows = te.flowsAt(later)

	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.44"), "new-agent")
	if _, err := te.ValidateSession(ctx, sess.ID); err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	te.waitForBackground()

	stored, err := te.sessionStore.Lookup(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !stored.LastAccessAt.Equal(later) {
		t.Fatalf("expected lastAccessAt %s, got %s", later, stored.LastAccessAt)
	}
	if stored.IP != "192.0.2.44" || stored.UserAgent != "new-agent" {
		t.Fatalf("expected touched ip/ua, got %q/%q", stored.IP, stored.UserAgent)
	}
}

func TestValidateSessionConcurrentWithClose(t *testing.T) {
	te := newTestEngine(t)
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 20; j++ {
				_, _ = te.ValidateSession(context.Background(), sess.ID)
			}
		}()
	}
	close(start)
	te.Close()
	wg.Wait()

	if te.goBackground(&te.touches, func() { t.Error("ran after Close") }) {
		t.Fatal("expected no background work to start after Close")
	}
}

func TestCurrentUserAndGuards(t *testing.T) {
	te := newTestEngine(t)
	te.seedUser(t, "admin@example.com", "admin-password", RoleAdmin)
	te.seedUser(t, "user@example.com", "user-password", RoleUser)
	ctx := context.Background()

	adminSess := loginAs(t, te, "admin@example.com", "admin-password")
	userSess := loginAs(t, te, "user@example.com", "user-password")

	res, err := te.CurrentUser(ctx, userSess.ID)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if res.User.Email != "user@example.com" || res.User.PasswordHash != "" || res.IsAdmin() {
		t.Fatalf("unexpected auth result %+v", res.User)
	}

	if _, err := te.RequireAdmin(ctx, userSess.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for USER, got %v", err)
	}
	if _, err := te.RequireAdmin(ctx, "missing"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without session, got %v", err)
	}
	admin, err := te.RequireAdmin(ctx, adminSess.ID)
	if err != nil || !admin.IsAdmin() {
		t.Fatalf("expected admin result, got %+v err=%v", admin, err)
	}
}

func TestCurrentUserDeletedUser(t *testing.T) {
	te := newTestEngine(t)
	u := te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")

	te.users.mu.Lock()
	delete(te.users.users, u.ID)
	te.users.mu.Unlock()

	if _, err := te.CurrentUser(context.Background(), sess.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a vanished user, got %v", err)
	}
}

func TestLogoutUnknownSessionIsNoop(t *testing.T) {
	te := newTestEngine(t)
	id, _ := session.NewID()

	if err := te.Logout(context.Background(), id); err != nil {
		t.Fatalf("expected nil for unknown id, got %v", err)
	}
	if err := te.Logout(context.Background(), "garbage"); err != nil {
		t.Fatalf("expected nil for malformed id, got %v", err)
	}
}

func TestRevokeSessionByAdmin(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	sess := loginAs(t, te, "alice@example.com", "correct-horse")
	ctx := context.Background()

	missing, _ := session.NewID()
	if err := te.RevokeSession(ctx, "admin-1", missing); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := te.RevokeSession(ctx, "admin-1", sess.ID); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := te.ValidateSession(ctx, sess.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked session to fail, got %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != auditEventSessionRevoked {
				continue
			}
			if ev.ActorID != "admin-1" || ev.ResourceType != "session" || ev.ResourceID != sess.ID {
				t.Fatalf("unexpected revoke event %+v", ev)
			}
			if AdminAction(ev.EventType) != AdminActionRevokeSession {
				t.Fatalf("unexpected admin action for %q", ev.EventType)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for revoke audit event")
		}
	}
}

func TestRevokeAllForUser(t *testing.T) {
	te := newTestEngine(t)
	u := te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	a := loginAs(t, te, "alice@example.com", "correct-horse")
	b := loginAs(t, te, "alice@example.com", "correct-horse")
	ctx := context.Background()

	if err := te.RevokeAllForUser(ctx, "admin-1", u.ID); err != nil {
		t.Fatalf("RevokeAllForUser failed: %v", err)
	}
	for _, s := range []*session.Session{a, b} {
		if _, err := te.ValidateSession(ctx, s.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("session %s should be revoked, got %v", s.ID, err)
		}
	}
}

func TestListSessionsUnsupportedOnRedis(t *testing.T) {
	te := newTestEngine(t)
	if te.CanListSessions() {
		t.Fatal("redis store must not advertise listing")
	}
	if _, _, err := te.ListSessions(context.Background(), session.ListFilter{}); !errors.Is(err, ErrListingUnsupported) {
		t.Fatalf("expected ErrListingUnsupported, got %v", err)
	}
}
