package binarystore

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
	"github.com/E8A281E6ACA2/BinaryStore/session"
)

// Login verifies the credentials and opens a session.
//
// Unknown emails and wrong passwords both return [ErrInvalidCredentials].
// [ErrLoginRateLimited] is returned once the "<ip>:<email>" key has used
// its attempts. A limiter outage never blocks a login.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if req.IP == "" {
		req.IP = clientIPFromContext(ctx)
	}
	if req.UserAgent == "" {
		req.UserAgent = userAgentFromContext(ctx)
	}

	res, err := e.flows.Login(ctx, internalflows.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		ForwardedBy: req.ForwardedBy,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: &User{
			ID:    res.User.UserID,
			Email: res.User.Email,
			Name:  res.User.Name,
			Role:  Role(res.User.Role),
		},
		Session: res.Session,
	}, nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		SessionTTL: e.config.Session.TTL,
		DummyHash:  e.dummyHash,
		Now:        e.now,
		GetUserByEmail: func(ctx context.Context, email string) (internalflows.LoginUserRecord, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			user, err := e.userProvider.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.LoginUserRecord{}, err
			}
			if user == nil {
				return internalflows.LoginUserRecord{}, ErrUserNotFound
			}
			return internalflows.LoginUserRecord{
				UserID:       user.ID,
				Email:        user.Email,
				Name:         user.Name,
				PasswordHash: user.PasswordHash,
				Role:         string(user.Role),
			}, nil
		},
		IsUserNotFound: func(err error) bool {
			return errors.Is(err, ErrUserNotFound)
		},
		VerifyPassword: e.verifyPassword,
		CreateSession:  e.createSession,
		UpdateLastLogin: func(ctx context.Context, userID string, at time.Time) error {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.userProvider.UpdateLastLogin(ctx, userID, at)
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			RateLimiterError: int(MetricRateLimiterError),
			SessionCreated:   int(MetricSessionCreated),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:        ErrEngineNotReady,
			MissingCredentials:    ErrMissingCredentials,
			InvalidCredentials:    ErrInvalidCredentials,
			LoginRateLimited:      ErrLoginRateLimited,
			SessionCreationFailed: ErrSessionCreationFailed,
		},
	}

	if e.rateLimiter != nil {
		deps.IsBlocked = e.rateLimiter.IsBlocked
		deps.RecordFailure = e.rateLimiter.RecordFailure
		deps.ResetFailures = e.rateLimiter.Reset
	}

	return deps
}

func (e *Engine) createSession(ctx context.Context, userID string, opts session.CreateOptions) (*session.Session, error) {
	ctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	return e.sessionStore.Create(ctx, userID, opts)
}
