package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/password"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

type memUsers struct {
	mu      sync.Mutex
	users   map[string]*binarystore.User
	byEmail map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*binarystore.User{}, byEmail: map[string]string{}}
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*binarystore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, binarystore.ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*binarystore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, binarystore.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) CreateUser(_ context.Context, in binarystore.CreateUserInput) (*binarystore.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(in.Email)
	if _, ok := m.byEmail[email]; ok {
		return nil, binarystore.ErrAccountExists
	}
	now := time.Now()
	u := &binarystore.User{
		ID:           fmt.Sprintf("user-%d", len(m.users)+1),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return binarystore.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *memUsers) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return binarystore.ErrUserNotFound
	}
	delete(m.byEmail, strings.ToLower(u.Email))
	delete(m.users, id)
	return nil
}

func (m *memUsers) AdminExists(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == binarystore.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) emailOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Email
	}
	return ""
}

// memSessions is a listing-capable session store.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	users    *memUsers
}

func newMemSessions(users *memUsers) *memSessions {
	return &memSessions{sessions: map[string]*session.Session{}, users: users}
}

func (m *memSessions) Create(_ context.Context, userID string, opts session.CreateOptions) (*session.Session, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}
	s := session.New(id, userID, opts, time.Now().UTC())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	cp := *s
	return &cp, nil
}

func (m *memSessions) Lookup(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Touch(_ context.Context, id string, info session.TouchInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		info.Apply(s)
	}
	return nil
}

func (m *memSessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Revoked = true
	}
	return nil
}

func (m *memSessions) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memSessions) List(_ context.Context, f session.ListFilter) ([]session.Listing, int, error) {
	m.mu.Lock()
	var all []session.Listing
	for _, s := range m.sessions {
		all = append(all, session.Listing{Session: *s})
	}
	m.mu.Unlock()

	var matched []session.Listing
	for _, l := range all {
		l.UserEmail = m.users.emailOf(l.UserID)
		if f.EmailContains != "" && !strings.Contains(strings.ToLower(l.UserEmail), strings.ToLower(f.EmailContains)) {
			continue
		}
		if f.Revoked != nil && l.Revoked != *f.Revoked {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	links []string
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, link)
	return nil
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.links) == 0 {
		return ""
	}
	return n.links[len(n.links)-1]
}

// waitLast returns the most recent link once the background delivery has
// happened.
func (n *recordingNotifier) waitLast(t *testing.T) string {
	t.Helper()
	require.Eventually(t, func() bool { return n.last() != "" }, 5*time.Second, 10*time.Millisecond)
	return n.last()
}

type countingSeeder struct {
	calls int
}

func (c *countingSeeder) SeedDefaults(context.Context) (int, error) {
	c.calls++
	return 16, nil
}

type harness struct {
	engine   *binarystore.Engine
	users    *memUsers
	sessions *memSessions
	notifier *recordingNotifier
	seeder   *countingSeeder
	mr       *miniredis.Miniredis
	handler  http.Handler
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	memorySessions bool
	opts           Options
}

func withMemorySessions() harnessOption {
	return func(c *harnessConfig) { c.memorySessions = true }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(c *harnessConfig) { fn(&c.opts) }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()

	var hc harnessConfig
	for _, o := range options {
		o(&hc)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := binarystore.DefaultConfig()
	cfg.Password.N = 1024
	cfg.Audit.Enabled = false

	h := &harness{
		users:    newMemUsers(),
		notifier: &recordingNotifier{},
		seeder:   &countingSeeder{},
		mr:       mr,
	}

	b := binarystore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(h.users).
		WithNotifier(h.notifier)
	if hc.memorySessions {
		h.sessions = newMemSessions(h.users)
		b.WithSessionStore(h.sessions)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	h.engine = engine

	opts := hc.opts
	if opts.Settings == nil {
		opts.Settings = h.seeder
	}
	h.handler = New(engine, opts).Handler()
	return h
}

// addUser stores an account with a real password hash.
func (h *harness) addUser(t *testing.T, email, pw string, role binarystore.Role) *binarystore.User {
	t.Helper()
	hasher, err := password.NewScrypt(password.Config{N: 1024, R: 8, P: 1, SaltLength: 16, KeyLength: 64})
	require.NoError(t, err)
	hash, err := hasher.Hash(pw)
	require.NoError(t, err)
	u, err := h.users.CreateUser(context.Background(), binarystore.CreateUserInput{
		Email:        email,
		Name:         strings.Split(email, "@")[0],
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "httpapi-test")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// login signs in and returns the session cookie.
func (h *harness) login(t *testing.T, email, pw string) *http.Cookie {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/admin/auth/login", map[string]string{"email": email, "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(t, c)
	return c
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
