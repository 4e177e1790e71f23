package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// SystemActor is recorded when no principal is attached to the context.
const SystemActor = "system"

// AuditLog is one audit_logs row.
type AuditLog struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends to audit_logs.
type AuditLogger struct {
	db Querier
}

func NewAuditLogger(db Querier) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists log. An empty ActorID is taken from the request principal,
// falling back to SystemActor; a zero At lets the database stamp the row.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action, entity and entity id")
	}
	if log.ActorID == "" {
		log.ActorID = SystemActor
		if p, ok := PrincipalFromContext(ctx); ok && p.AccountID != "" {
			log.ActorID = p.AccountID
		}
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		utc := log.At.UTC()
		at = &utc
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
