package binarystore

import (
	"context"
	"errors"

	internalflows "github.com/E8A281E6ACA2/BinaryStore/internal/flows"
)

// Register creates a USER account and logs it in.
//
// It returns [ErrMissingCredentials] when email or password is empty,
// [ErrAccountExists] when the email is taken and [ErrPasswordPolicy] for
// a password outside the configured length bounds.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if req.IP == "" {
		req.IP = clientIPFromContext(ctx)
	}
	if req.UserAgent == "" {
		req.UserAgent = userAgentFromContext(ctx)
	}

	res, err := e.flows.CreateAccount(ctx, internalflows.AccountCreateRequest{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:    fromFlowAccountUser(res.User),
		Session: res.Session,
	}, nil
}

// InitializeAdmin creates the first ADMIN account. Once any ADMIN exists
// it returns [ErrAlreadyInitialized].
//
// The existence check and the insert are separate statements; two
// concurrent first-run requests can both pass the check, and the unique
// email constraint is then the only guard.
func (e *Engine) InitializeAdmin(ctx context.Context, req InitializeAdminRequest) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	user, err := e.flows.InitializeAdmin(ctx, internalflows.AccountCreateRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return nil, err
	}
	return fromFlowAccountUser(user), nil
}

// IsInitialized reports whether an ADMIN account exists.
func (e *Engine) IsInitialized(ctx context.Context) (bool, error) {
	if e == nil || e.userProvider == nil {
		return false, ErrEngineNotReady
	}
	ctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	return e.userProvider.AdminExists(ctx)
}

// DeleteUser removes userID on behalf of actorID after revoking its
// sessions. Admins cannot delete themselves.
func (e *Engine) DeleteUser(ctx context.Context, actorID, userID string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}
	if actorID == userID {
		e.emitAdminAudit(ctx, auditEventUserDeleted, actorID, userID, "", "user", userID, ErrCannotDeleteSelf)
		return ErrCannotDeleteSelf
	}

	if err := e.flows.LogoutAll(ctx, userID); err != nil {
		e.warn(ctx, err, "revoke sessions before user delete failed")
	}

	dctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	if err := e.userProvider.DeleteUser(dctx, userID); err != nil {
		e.emitAdminAudit(ctx, auditEventUserDeleted, actorID, userID, "", "user", userID, err)
		return err
	}

	e.metricInc(MetricUserDeleted)
	e.emitAdminAudit(ctx, auditEventUserDeleted, actorID, userID, "", "user", userID, nil)
	return nil
}

// GetUser returns the account for userID without its password hash.
func (e *Engine) GetUser(ctx context.Context, userID string) (*User, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.datastoreContext(ctx)
	defer cancel()
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	user.PasswordHash = ""
	return user, nil
}

func fromFlowAccountUser(u internalflows.AccountUserRecord) *User {
	return &User{
		ID:    u.UserID,
		Email: u.Email,
		Name:  u.Name,
		Role:  Role(u.Role),
	}
}

func (e *Engine) accountFlowDeps() internalflows.AccountDeps {
	return internalflows.AccountDeps{
		SessionTTL:   e.config.Session.TTL,
		MinLength:    e.config.Password.MinLength,
		MaxLength:    e.config.Password.MaxLength,
		HashPassword: e.hashPassword,
		CreateUser: func(ctx context.Context, in internalflows.AccountCreateUserInput) (internalflows.AccountUserRecord, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			user, err := e.userProvider.CreateUser(ctx, CreateUserInput{
				Email:        in.Email,
				Name:         in.Name,
				PasswordHash: in.PasswordHash,
				Role:         Role(in.Role),
			})
			if err != nil {
				return internalflows.AccountUserRecord{}, err
			}
			return internalflows.AccountUserRecord{
				UserID: user.ID,
				Email:  user.Email,
				Name:   user.Name,
				Role:   string(user.Role),
			}, nil
		},
		IsDuplicate: func(err error) bool {
			return errors.Is(err, ErrAccountExists)
		},
		AdminExists: func(ctx context.Context) (bool, error) {
			ctx, cancel := e.datastoreContext(ctx)
			defer cancel()
			return e.userProvider.AdminExists(ctx)
		},
		CreateSession: e.createSession,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.AccountMetrics{
			AccountCreationSuccess:   int(MetricAccountCreationSuccess),
			AccountCreationDuplicate: int(MetricAccountCreationDuplicate),
			AdminInitialized:         int(MetricAdminInitialized),
			SessionCreated:           int(MetricSessionCreated),
		},
		Events: internalflows.AccountEvents{
			AccountCreated:   auditEventAccountCreated,
			AdminInitialized: auditEventAdminInitialized,
		},
		Errors: internalflows.AccountErrors{
			EngineNotReady:        ErrEngineNotReady,
			MissingCredentials:    ErrMissingCredentials,
			InvalidEmail:          ErrInvalidEmail,
			PasswordPolicy:        ErrPasswordPolicy,
			AccountExists:         ErrAccountExists,
			AlreadyInitialized:    ErrAlreadyInitialized,
			SessionCreationFailed: ErrSessionCreationFailed,
		},
	}
}
