package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

// AdminLogEntry is one row of admin_logs.
type AdminLogEntry struct {
	ID           string
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	CreatedAt    time.Time
}

// AdminLog persists admin actions. As an [binarystore.AuditSink] it keeps
// only events that map to an admin action and ignores the rest.
type AdminLog struct {
	db      DBTX
	timeout time.Duration
}

func NewAdminLog(db DBTX) *AdminLog {
	return &AdminLog{db: db, timeout: 5 * time.Second}
}

// Record inserts e. ID and CreatedAt are filled when empty.
func (r *AdminLog) Record(ctx context.Context, e AdminLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var details any
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = raw
	}

	// admin_logs.user_id references users; ids that are not uuids are
	// stored as NULL.
	var actor any
	if _, err := uuid.Parse(e.UserID); err == nil {
		actor = e.UserID
	}

	query :=
		`INSERT INTO admin_logs (id, user_id, action, resource_type, resource_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 `
	_, err := r.db.ExecContext(ctx, query, e.ID, actor, e.Action, e.ResourceType, e.ResourceID, details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Emit implements [binarystore.AuditSink].
func (r *AdminLog) Emit(ctx context.Context, event binarystore.AuditEvent) {
	action := binarystore.AdminAction(event.EventType)
	if action == "" {
		return
	}

	details := map[string]any{"success": event.Success}
	if event.UserID != "" {
		details["userId"] = event.UserID
	}
	if event.SessionID != "" {
		details["sessionId"] = event.SessionID
	}
	if event.Error != "" {
		details["error"] = event.Error
	}
	if event.IP != "" {
		details["ip"] = event.IP
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.Record(ctx, AdminLogEntry{
		ID:           event.ID,
		UserID:       event.ActorID,
		Action:       action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Details:      details,
		CreatedAt:    event.Timestamp,
	})
	if err != nil {
		log.Warn(ctx).Err(err).Str("action", action).Msg("admin log write failed")
	}
}

// Recent returns the newest entries, at most limit.
func (r *AdminLog) Recent(ctx context.Context, limit int) ([]AdminLogEntry, error) {
	query :=
		`SELECT id, COALESCE(user_id::text, ''), action, resource_type, resource_id, details, created_at
		 FROM admin_logs
		 ORDER BY created_at DESC
		 LIMIT $1
		 `
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []AdminLogEntry
	for rows.Next() {
		var (
			e       AdminLogEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("admin log details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

var _ binarystore.AuditSink = (*AdminLog)(nil)
