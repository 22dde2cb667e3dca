package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ConfigEntry is one row of the system_config table. Value holds the
// ciphertext when Encrypted is set.
type ConfigEntry struct {
	Key       string
	Value     string
	Encrypted bool
	UpdatedAt time.Time
}

// SystemConfig is the repository for runtime system settings.
type SystemConfig struct {
	db DBTX
}

func NewSystemConfig(db DBTX) *SystemConfig {
	return &SystemConfig{db: db}
}

// Get returns [ErrNotFound] for unknown keys.
func (r *SystemConfig) Get(ctx context.Context, key string) (ConfigEntry, error) {
	query :=
		`SELECT key, value, encrypted, updated_at FROM system_config
		 WHERE key = $1
		 `
	var e ConfigEntry
	err := r.db.QueryRowContext(ctx, query, key).Scan(&e.Key, &e.Value, &e.Encrypted, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConfigEntry{}, ErrNotFound
		}
		return ConfigEntry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// Upsert writes e, replacing any existing value for the key.
func (r *SystemConfig) Upsert(ctx context.Context, e ConfigEntry) error {
	query :=
		`INSERT INTO system_config (key, value, encrypted, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted, updated_at = now()
		 `
	if _, err := r.db.ExecContext(ctx, query, e.Key, e.Value, e.Encrypted); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// InsertIfAbsent writes e only when the key has no value yet. It reports
// whether a row was inserted.
func (r *SystemConfig) InsertIfAbsent(ctx context.Context, e ConfigEntry) (bool, error) {
	query :=
		`INSERT INTO system_config (key, value, encrypted, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO NOTHING
		 `
	res, err := r.db.ExecContext(ctx, query, e.Key, e.Value, e.Encrypted)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// List returns every entry ordered by key.
func (r *SystemConfig) List(ctx context.Context) ([]ConfigEntry, error) {
	query :=
		`SELECT key, value, encrypted, updated_at FROM system_config
		 ORDER BY key
		 `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Encrypted, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
