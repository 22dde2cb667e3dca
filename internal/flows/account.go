package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/E8A281E6ACA2/BinaryStore/session"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type AccountCreateRequest struct {
	Email     string
	Password  string
	Name      string
	Role      string
	IP        string
	UserAgent string
}

type AccountUserRecord struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

type AccountCreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

type AccountCreateResult struct {
	User    AccountUserRecord
	Session *session.Session
}

type AccountMetrics struct {
	AccountCreationSuccess   int
	AccountCreationDuplicate int
	AdminInitialized         int
	SessionCreated           int
}

type AccountEvents struct {
	AccountCreated   string
	AdminInitialized string
}

type AccountErrors struct {
	EngineNotReady        error
	MissingCredentials    error
	InvalidEmail          error
	PasswordPolicy        error
	AccountExists         error
	AlreadyInitialized    error
	SessionCreationFailed error
}

type AccountDeps struct {
	SessionTTL time.Duration
	MinLength  int
	MaxLength  int

	HashPassword  func(context.Context, string) (string, error)
	CreateUser    func(context.Context, AccountCreateUserInput) (AccountUserRecord, error)
	IsDuplicate   func(error) bool
	AdminExists   func(context.Context) (bool, error)
	CreateSession func(context.Context, string, session.CreateOptions) (*session.Session, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, error, func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
}

// ValidEmail is a shape check only: one "@" with text on both sides.
func ValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != "" && !strings.ContainsAny(email, " \t\r\n") && !strings.Contains(domain, "@")
}

func createUser(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (AccountUserRecord, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return AccountUserRecord{}, deps.Errors.MissingCredentials
	}
	if !ValidEmail(email) {
		return AccountUserRecord{}, deps.Errors.InvalidEmail
	}
	if err := CheckPasswordPolicy(req.Password, deps.MinLength, deps.MaxLength, deps.Errors.PasswordPolicy); err != nil {
		return AccountUserRecord{}, err
	}

	hash, err := deps.HashPassword(ctx, req.Password)
	if err != nil {
		return AccountUserRecord{}, err
	}

	user, err := deps.CreateUser(ctx, AccountCreateUserInput{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		if deps.IsDuplicate(err) || errors.Is(err, deps.Errors.AccountExists) {
			deps.MetricInc(deps.Metrics.AccountCreationDuplicate)
			return AccountUserRecord{}, deps.Errors.AccountExists
		}
		return AccountUserRecord{}, err
	}
	return user, nil
}

// RunCreateAccount registers a USER account and, when CreateSession is
// wired, opens a session for it.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (*AccountCreateResult, error) {
	normalizeAccountDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req.Role = RoleUser
	user, err := createUser(ctx, req, deps)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.AccountCreated, false, "", "", err, func() map[string]string {
			return map[string]string{"email": NormalizeEmail(req.Email)}
		})
		return nil, err
	}
	deps.MetricInc(deps.Metrics.AccountCreationSuccess)

	res := &AccountCreateResult{User: user}
	if deps.CreateSession != nil {
		sess, err := deps.CreateSession(ctx, user.UserID, session.CreateOptions{
			TTL:       deps.SessionTTL,
			IP:        req.IP,
			UserAgent: req.UserAgent,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.SessionCreationFailed, err)
		}
		deps.MetricInc(deps.Metrics.SessionCreated)
		res.Session = sess
	}

	sessionID := ""
	if res.Session != nil {
		sessionID = res.Session.ID
	}
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, user.UserID, sessionID, nil, nil)
	return res, nil
}

// RunInitializeAdmin creates the first ADMIN. It fails with
// AlreadyInitialized once any ADMIN exists. Name is required.
func RunInitializeAdmin(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (AccountUserRecord, error) {
	normalizeAccountDeps(&deps)
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.AdminExists == nil {
		return AccountUserRecord{}, deps.Errors.EngineNotReady
	}

	exists, err := deps.AdminExists(ctx)
	if err != nil {
		return AccountUserRecord{}, err
	}
	if exists {
		deps.EmitAudit(ctx, deps.Events.AdminInitialized, false, "", "", deps.Errors.AlreadyInitialized, nil)
		return AccountUserRecord{}, deps.Errors.AlreadyInitialized
	}
	if strings.TrimSpace(req.Name) == "" {
		return AccountUserRecord{}, deps.Errors.MissingCredentials
	}

	req.Role = RoleAdmin
	user, err := createUser(ctx, req, deps)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.AdminInitialized, false, "", "", err, nil)
		return AccountUserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.AdminInitialized)
	deps.EmitAudit(ctx, deps.Events.AdminInitialized, true, user.UserID, "", nil, nil)
	return user, nil
}
