package binarystore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
)

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]*User
	byEmail map[string]string

	getErr    error
	createErr error
	deleteErr error

	lastLoginCalls int
	deleted        []string
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   map[string]*User{},
		byEmail: map[string]string{},
	}
}

func (m *mockUserProvider) copyUser(u *User) *User {
	cp := *u
	return &cp
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return m.copyUser(m.users[id]), nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return m.copyUser(u), nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, in CreateUserInput) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.byEmail[in.Email]; ok {
		return nil, ErrAccountExists
	}
	now := time.Now()
	u := &User{
		ID:           fmt.Sprintf("u%d", len(m.users)+1),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return m.copyUser(u), nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *mockUserProvider) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLoginCalls++
	if u, ok := m.users[userID]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *mockUserProvider) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.users, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *mockUserProvider) AdminExists(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserProvider) passwordHash(userID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].PasswordHash
}

type recordingNotifier struct {
	mu    sync.Mutex
	links []string
	err   error
	// block, when set, delays every send until it is closed.
	block chan struct{}
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _, _, link string) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, link)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.links)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// testConfig keeps scrypt cheap so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.N = 1024
	cfg.Audit.Enabled = false
	return cfg
}

type testEngine struct {
	*Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	users    *mockUserProvider
	notifier *recordingNotifier
}

func newTestEngine(t *testing.T, mutate ...func(*Builder)) *testEngine {
	t.Helper()

	mr, rdb := newTestRedis(t)
	users := newMockUserProvider()
	notifier := &recordingNotifier{}

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(users).
		WithNotifier(notifier)
	for _, fn := range mutate {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, mr: mr, rdb: rdb, users: users, notifier: notifier}
}

func (te *testEngine) seedUser(t *testing.T, email, pw string, role Role) *User {
	t.Helper()

	hash, err := te.passwordHash.Hash(pw)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	u, err := te.users.CreateUser(context.Background(), CreateUserInput{
		Email:        email,
		Name:         strings.Split(email, "@")[0],
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

// waitForBackground lets scheduled session touches finish.
func (te *testEngine) waitForBackground() {
	te.touches.Wait()
}

// waitForNotifications lets dispatched reset messages finish.
func (te *testEngine) waitForNotifications() {
	te.notifications.Wait()
}

// flowsAt rebuilds the flow wiring with a fixed clock.
func (te *testEngine) flowsAt(at time.Time) internalflows.Service {
	te.now = func() time.Time { return at }
	return internalflows.New(te.flowDeps())
}
