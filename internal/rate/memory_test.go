package rate

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemory(t *testing.T, maxAttempts int, window time.Duration) (*Memory, *fakeClock) {
	t.Helper()

	m, err := NewMemory(Config{MaxAttempts: maxAttempts, Window: window})
	if err != nil {
		t.Fatalf("NewMemory error: %v", err)
	}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m.now = clock.Now
	return m, clock
}

func TestMemoryUnknownKeyNotBlocked(t *testing.T) {
	m, _ := newTestMemory(t, 10, 15*time.Minute)

	blocked, err := m.IsBlocked(context.Background(), "1.2.3.4:a@b.c")
	if err != nil {
		t.Fatalf("IsBlocked error: %v", err)
	}
	if blocked {
		t.Fatal("expected never-seen key to be unblocked")
	}
}

func TestMemoryBlocksAtBudget(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t, 10, 15*time.Minute)
	key := "1.2.3.4:admin@example.com"

	for i := 0; i < 9; i++ {
		if err := m.RecordFailure(ctx, key); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}
	if blocked, _ := m.IsBlocked(ctx, key); blocked {
		t.Fatal("expected key to be unblocked after 9 failures")
	}

	if err := m.RecordFailure(ctx, key); err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	if blocked, _ := m.IsBlocked(ctx, key); !blocked {
		t.Fatal("expected key to be blocked after 10 failures")
	}

	if blocked, _ := m.IsBlocked(ctx, "5.6.7.8:admin@example.com"); blocked {
		t.Fatal("expected other keys to be unaffected")
	}
}

func TestMemoryWindowExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t, 3, time.Minute)
	key := "k"

	for i := 0; i < 3; i++ {
		_ = m.RecordFailure(ctx, key)
	}
	if blocked, _ := m.IsBlocked(ctx, key); !blocked {
		t.Fatal("expected key to be blocked")
	}

	clock.Advance(time.Minute + time.Millisecond)
	if blocked, _ := m.IsBlocked(ctx, key); blocked {
		t.Fatal("expected key to be unblocked after the window")
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, have %d", m.Len())
	}
}

func TestMemoryWindowIsFixed(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t, 3, time.Minute)
	key := "k"

	_ = m.RecordFailure(ctx, key)
	clock.Advance(50 * time.Second)
	_ = m.RecordFailure(ctx, key)
	clock.Advance(11 * time.Second)

	// The first window elapsed; this failure starts a new one at 1.
	_ = m.RecordFailure(ctx, key)
	_ = m.RecordFailure(ctx, key)
	if blocked, _ := m.IsBlocked(ctx, key); blocked {
		t.Fatal("expected new window to start counting from 1")
	}
	_ = m.RecordFailure(ctx, key)
	if blocked, _ := m.IsBlocked(ctx, key); !blocked {
		t.Fatal("expected key to be blocked after 3 failures in the new window")
	}
}

func TestMemoryReset(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t, 2, time.Minute)

	_ = m.RecordFailure(ctx, "k")
	_ = m.RecordFailure(ctx, "k")
	if err := m.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if blocked, _ := m.IsBlocked(ctx, "k"); blocked {
		t.Fatal("expected reset key to be unblocked")
	}
	if err := m.Reset(ctx, "missing"); err != nil {
		t.Fatalf("Reset of missing key error: %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(t, 2, time.Minute)

	_ = m.RecordFailure(ctx, "old")
	clock.Advance(2 * time.Minute)
	_ = m.RecordFailure(ctx, "fresh")

	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", m.Len())
	}
}

func TestNewMemoryRejectsInvalidConfig(t *testing.T) {
	if _, err := NewMemory(Config{MaxAttempts: 0, Window: time.Minute}); err == nil {
		t.Fatal("expected error for zero MaxAttempts")
	}
	if _, err := NewMemory(Config{MaxAttempts: 1}); err == nil {
		t.Fatal("expected error for zero Window")
	}
}
