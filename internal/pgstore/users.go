package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

const userColumns = `id, email, name, password_hash, role, created_at, updated_at, last_login_at`

// Users is the account repository. It implements [binarystore.UserProvider].
type Users struct {
	db DBTX
}

func NewUsers(db DBTX) *Users {
	return &Users{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*binarystore.User, error) {
	var (
		u         binarystore.User
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = binarystore.Role(role)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

func (r *Users) getOne(ctx context.Context, query string, arg any) (*binarystore.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, binarystore.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *Users) GetUserByEmail(ctx context.Context, email string) (*binarystore.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

func (r *Users) GetUserByID(ctx context.Context, userID string) (*binarystore.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, binarystore.ErrUserNotFound
	}
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, userID)
}

// CreateUser inserts a new account. A taken email returns
// [binarystore.ErrAccountExists].
func (r *Users) CreateUser(ctx context.Context, in binarystore.CreateUserInput) (*binarystore.User, error) {
	role := in.Role
	if role == "" {
		role = binarystore.RoleUser
	}
	u := &binarystore.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         role,
	}

	query :=
		`INSERT INTO users (id, email, name, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at
		 `
	err := r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role)).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, binarystore.ErrAccountExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *Users) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return binarystore.ErrUserNotFound
	}
	return nil
}

func (r *Users) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, hash)
}

func (r *Users) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	query :=
		`UPDATE users SET last_login_at = $2
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID, at)
}

// DeleteUser removes the account. Sessions, reset tokens and admin log
// references follow through foreign key actions.
func (r *Users) DeleteUser(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return binarystore.ErrUserNotFound
	}
	query :=
		`DELETE FROM users
		 WHERE id = $1
		 `
	return r.exec(ctx, query, userID)
}

func (r *Users) AdminExists(ctx context.Context) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE role = 'ADMIN')
		 `
	var exists bool
	if err := r.db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

var _ binarystore.UserProvider = (*Users)(nil)
