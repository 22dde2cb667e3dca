package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/middleware"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Engine is the authentication surface the handlers call.
// *binarystore.Engine implements it.
type Engine interface {
	middleware.Authenticator

	Login(ctx context.Context, req binarystore.LoginRequest) (*binarystore.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	Register(ctx context.Context, req binarystore.RegisterRequest) (*binarystore.LoginResult, error)
	InitializeAdmin(ctx context.Context, req binarystore.InitializeAdminRequest) (*binarystore.User, error)
	IsInitialized(ctx context.Context) (bool, error)
	DeleteUser(ctx context.Context, actorID, userID string) error
	RequestPasswordReset(ctx context.Context, email string) (binarystore.ResetIssue, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	ListSessions(ctx context.Context, filter session.ListFilter) ([]session.Listing, int, error)
	RevokeSession(ctx context.Context, actorID, sessionID string) error
	RevokeAllForUser(ctx context.Context, actorID, userID string) error
	SessionTTL() time.Duration
	SecureCookies() bool
}

// Seeder writes default system settings after the first admin is
// created. *configstore.Store implements it.
type Seeder interface {
	SeedDefaults(ctx context.Context) (int, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options configures a [Server].
type Options struct {
	// Production hides error details from responses.
	Production bool
	// Settings is seeded when the first admin is created. Optional.
	Settings Seeder
	// HealthChecks are run by /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
	// HealthTimeout bounds all health checks together. Defaults to 2s.
	HealthTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// PublicPaths overrides middleware.DefaultPublicPaths for the edge
	// cookie check.
	PublicPaths []string
}

// Server holds the handlers for one engine.
type Server struct {
	engine Engine
	opts   Options
}

// New returns a server for engine.
func New(engine Engine, opts Options) *Server {
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	return &Server{engine: engine, opts: opts}
}

// Handler returns the routed handler with logging, security headers,
// client context and the edge cookie check applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(log.NewHandler(log.Logger))
	r.Use(log.RemoteAddrHandler("remote_addr"))
	r.Use(log.UserAgentHandler("user_agent"))
	r.Use(log.RequestIDHandler("request_id"))
	r.Use(log.AccessLog())
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(s.opts.Production))
	r.Use(middleware.ClientContext)
	r.Use(middleware.EdgeSessionPresence(s.opts.PublicPaths...))

	r.Get("/healthz", s.handle(s.health))
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Get("/api/setup/status", s.setupStatus)
	r.Post("/api/admin/init", s.handle(s.initialize))

	r.Route("/api/admin/auth", func(r chi.Router) {
		r.Post("/login", s.handle(s.login))
		r.Post("/logout", s.handle(s.logout))
		r.Get("/me", s.handle(s.me))
		r.Post("/register", s.handle(s.register))
		r.Post("/password/request", s.handle(s.passwordRequest))
		r.Post("/password/reset", s.handle(s.passwordReset))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.engine))
		r.Get("/api/admin/sessions", s.handle(s.listSessions))
		r.Post("/api/admin/sessions", s.handle(s.sessionAction))
		r.Delete("/api/admin/users/{id}", s.handle(s.deleteUser))
	})

	return r
}
