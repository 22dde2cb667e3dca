package flows

import (
	"context"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Lookup != nil
}

func (s Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	return RunLogin(ctx, in, s.deps.Login)
}

func (s Service) Validate(ctx context.Context, id string) ValidateResult {
	return RunValidate(ctx, id, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, sessionID string) LogoutResult {
	return RunLogout(ctx, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID string) error {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) (PasswordResetIssue, error) {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return RunConfirmPasswordReset(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) (*AccountCreateResult, error) {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) InitializeAdmin(ctx context.Context, req AccountCreateRequest) (AccountUserRecord, error) {
	return RunInitializeAdmin(ctx, req, s.deps.Account)
}
