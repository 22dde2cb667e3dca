package binarystore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{fmt.Errorf("%w: boom", ErrSessionCreationFailed), auditErrSessionCreationFailed},
		{ErrLoginRateLimited, auditErrRateLimited},
		{ErrResetTokenInvalid, auditErrInvalidToken},
		{ErrAccountExists, auditErrDuplicate},
		{ErrCannotDeleteSelf, auditErrForbidden},
		{fmt.Errorf("%w: redis", ErrResetUnavailable), auditErrUnavailable},
		{errors.New("anything else"), auditErrInternal},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLoginEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	ctx := WithUserAgent(WithClientIP(context.Background(), "192.0.2.9"), "ua")

	_, _ = te.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-password"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLoginFailure || ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.ID == "" || ev.IP != "192.0.2.9" || ev.UserAgent != "ua" {
			t.Fatalf("expected id and request attributes, got %+v", ev)
		}
		if ev.Error != string(auditErrInvalidCredentials) || ev.Metadata["email"] != "alice@example.com" {
			t.Fatalf("unexpected error/metadata %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}

type gatedAuditSink struct {
	entered chan struct{}
	gate    chan struct{}
	events  chan AuditEvent
}

func (s *gatedAuditSink) Emit(_ context.Context, ev AuditEvent) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
	s.events <- ev
}

func TestAdminAuditSurvivesFullBuffer(t *testing.T) {
	sink := &gatedAuditSink{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
		events:  make(chan AuditEvent, 8),
	}
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = true
		b.config.Audit.BufferSize = 1
		b.config.Audit.DropIfFull = true
		b.WithAuditSink(sink)
	})
	te.seedUser(t, "alice@example.com", "correct-horse", RoleUser)
	ctx := context.Background()

	res, err := te.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	<-sink.entered

	// One failure fills the buffer and the next is dropped.
	_, _ = te.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	_, _ = te.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	if got := te.AuditDropped(); got != 1 {
		t.Fatalf("expected 1 dropped routine event, got %d", got)
	}

	done := make(chan error, 1)
	go func() { done <- te.RevokeSession(ctx, "admin-1", res.Session.ID) }()
	select {
	case err := <-done:
		t.Fatalf("revoke returned while the audit buffer was full: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.gate)
	if err := <-done; err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.events:
			if ev.EventType != auditEventSessionRevoked {
				continue
			}
			if ev.ActorID != "admin-1" || ev.ID == "" || ev.Timestamp.IsZero() {
				t.Fatalf("unexpected admin event %+v", ev)
			}
			if got := te.AuditDropped(); got != 1 {
				t.Fatalf("admin event counted as dropped: %d", got)
			}
			return
		case <-timeout:
			t.Fatal("admin audit event never delivered")
		}
	}
}
