package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversBeforeClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// The worker blocks on the first event; the buffer then holds one more.
	d.Emit(context.Background(), Event{EventType: "a"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Emit(context.Background(), Event{EventType: "c"})
	d.Emit(context.Background(), Event{EventType: "d"})

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherKeepsDurableEventsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Durable:    func(ev Event) bool { return ev.EventType == "session_revoked" },
	}, sink)

	d.Emit(context.Background(), Event{EventType: "a"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{EventType: "b"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "session_revoked"})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("durable event returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.gate)
	<-done
	d.Close()
	if got := d.Dropped(); got != 0 {
		t.Fatalf("expected no drops, got %d", got)
	}
	if got := d.Delivered(); got != 3 {
		t.Fatalf("expected 3 delivered events, got %d", got)
	}
}

func TestDispatcherDurableEmitGivesUpWithContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Durable:    func(Event) bool { return true },
	}, sink)

	d.Emit(context.Background(), Event{EventType: "a"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})
	if got := d.Dropped(); got != 1 {
		t.Fatalf("expected 1 drop, got %d", got)
	}
	close(sink.gate)
	d.Close()
}

type recordingSink struct {
	events      chan Event
	hasDeadline chan bool
}

func (s *recordingSink) Emit(ctx context.Context, ev Event) {
	_, ok := ctx.Deadline()
	s.hasDeadline <- ok
	s.events <- ev
}

func TestDispatcherStampsEventsAndBoundsSinkCalls(t *testing.T) {
	sink := &recordingSink{events: make(chan Event, 2), hasDeadline: make(chan bool, 2)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, SinkTimeout: time.Second}, sink)

	before := time.Now().UTC()
	d.Emit(context.Background(), Event{EventType: "logout"})
	stamped := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.Emit(context.Background(), Event{ID: "kept", Timestamp: stamped, EventType: "logout"})
	d.Close()

	first := <-sink.events
	if first.ID == "" {
		t.Fatal("expected an assigned ID")
	}
	if first.Timestamp.Before(before) || first.Timestamp.Location() != time.UTC {
		t.Fatalf("unexpected timestamp %v", first.Timestamp)
	}
	second := <-sink.events
	if second.ID != "kept" || !second.Timestamp.Equal(stamped) {
		t.Fatalf("caller fields overwritten: %+v", second)
	}
	if !<-sink.hasDeadline || !<-sink.hasDeadline {
		t.Fatal("expected sink calls to carry a deadline")
	}
}

func TestDispatcherWithoutSinkTimeoutHasNoDeadline(t *testing.T) {
	sink := &recordingSink{events: make(chan Event, 1), hasDeadline: make(chan bool, 1)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()
	if <-sink.hasDeadline {
		t.Fatal("unexpected deadline on sink call")
	}
}

func TestDispatcherEmitAfterCloseIsNoop(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})
	if sink.count.Load() != 0 {
		t.Fatal("event delivered after close")
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{ID: "1", EventType: "logout", Success: true})
	s.Emit(context.Background(), Event{ID: "2", EventType: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventType != "login_failure" || ev.Error != "invalid_credentials" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLoggerSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	s := NewLoggerSink(zerolog.New(&buf))
	s.Emit(context.Background(), Event{EventType: "login_failure", UserID: "u1", Success: false})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["level"] != "warn" || line["event_type"] != "login_failure" || line["user_id"] != "u1" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: "x"})
	if a.count.Load() != 1 || b.count.Load() != 1 {
		t.Fatal("expected both sinks to receive the event")
	}
}
