package rate

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	attempts int
	firstAt  time.Time
}

// Memory is an in-process [Limiter]. Counters live in the instance and are
// lost on restart; run one server instance or use [Redis].
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time
}

// NewMemory creates an empty in-process limiter.
func NewMemory(cfg Config) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Memory{
		entries: make(map[string]*entry),
		config:  cfg,
		now:     time.Now,
	}, nil
}

// IsBlocked reports whether key has used its budget in the current window.
// An expired entry is dropped on read.
func (m *Memory) IsBlocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if m.now().Sub(e.firstAt) > m.config.Window {
		delete(m.entries, key)
		return false, nil
	}
	return e.attempts >= m.config.MaxAttempts, nil
}

// RecordFailure counts one failure, starting a new window when the previous
// one has elapsed.
func (m *Memory) RecordFailure(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.Sub(e.firstAt) > m.config.Window {
		m.entries[key] = &entry{attempts: 1, firstAt: now}
		return nil
	}
	e.attempts++
	return nil
}

// Reset forgets key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep drops every entry whose window has elapsed and returns how many
// were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if now.Sub(e.firstAt) > m.config.Window {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
