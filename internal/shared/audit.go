package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row of the desk's audit trail.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditSchema creates the audit table when it does not exist yet.
var AuditSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		meta JSONB NOT NULL DEFAULT '{}'::jsonb,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_occurred_at_idx ON audit_logs (occurred_at)`,
}

// auditPruneBatch bounds each DELETE so pruning never holds a long lock.
const auditPruneBatch = 5000

// AuditLogger appends to and prunes audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewAuditLogger returns an AuditLogger writing through pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool, now: time.Now}
}

func (l AuditLog) validate() error {
	switch {
	case l.Action == "":
		return errors.New("audit: action required")
	case l.Entity == "":
		return errors.New("audit: entity required")
	case l.EntityID == "":
		return errors.New("audit: entity id required")
	}
	return nil
}

// Record appends one entry. A zero At is stamped with the current time.
func (a *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if a == nil || a.pool == nil {
		return errors.New("audit: logger not initialised")
	}
	if err := entry.validate(); err != nil {
		return err
	}
	if entry.Meta == nil {
		entry.Meta = map[string]any{}
	}
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	if entry.At.IsZero() {
		entry.At = a.now()
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
		 VALUES (@actor, @action, @entity, @entity_id, @meta, @occurred_at)`,
		pgx.NamedArgs{
			"actor":       entry.Actor,
			"action":      entry.Action,
			"entity":      entry.Entity,
			"entity_id":   entry.EntityID,
			"meta":        meta,
			"occurred_at": entry.At.UTC(),
		})
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Prune deletes entries older than retention in bounded batches and returns
// how many rows went.
func (a *AuditLogger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if a == nil || a.pool == nil {
		return 0, nil
	}
	if retention <= 0 {
		return 0, errors.New("audit: retention must be positive")
	}
	cutoff := a.now().Add(-retention).UTC()
	var total int64
	for {
		tag, err := a.pool.Exec(ctx,
			`DELETE FROM audit_logs WHERE id IN (
				SELECT id FROM audit_logs WHERE occurred_at < $1 ORDER BY id LIMIT $2
			)`, cutoff, auditPruneBatch)
		if err != nil {
			return total, fmt.Errorf("audit: prune: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < auditPruneBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
