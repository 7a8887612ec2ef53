package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mrcaglayan/cariledger/internal/platform/db"
)

// AuditEvent is one row of the append-only audit_logs table. Payload is
// stored as JSON and consumed by compliance tooling outside this engine.
type AuditEvent struct {
	ID           int64
	TenantID     int64
	UserID       int64
	Action       string
	ResourceType string
	ResourceID   string
	Scope        string
	Payload      map[string]any
	OccurredAt   time.Time
}

// AuditWriter appends audit events. Posting and reversal write through a
// transaction-bound writer so the audit row commits atomically with the
// state change it describes.
type AuditWriter interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditLogger writes audit events through the given Querier, which may be
// a pool or an open transaction.
type AuditLogger struct {
	q db.Querier
}

// NewAuditLogger returns an AuditLogger bound to q.
func NewAuditLogger(q db.Querier) *AuditLogger {
	return &AuditLogger{q: q}
}

// Record persists one audit event.
func (l *AuditLogger) Record(ctx context.Context, event AuditEvent) error {
	if l == nil || l.q == nil {
		return errors.New("audit logger not initialised")
	}
	if event.Action == "" || event.ResourceType == "" || event.ResourceID == "" {
		return errors.New("audit event requires action/resource_type/resource_id")
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	_, err = l.q.Exec(ctx, `INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, scope, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		event.TenantID, event.UserID, event.Action, event.ResourceType, event.ResourceID, event.Scope, payload, event.OccurredAt)
	return err
}

// AuditFilter narrows timeline queries.
type AuditFilter struct {
	TenantID     int64
	ResourceType string
	ResourceID   string
	Action       string
	From         time.Time
	To           time.Time
	Limit        int
}

// List returns audit events newest first.
func (l *AuditLogger) List(ctx context.Context, f AuditFilter) ([]AuditEvent, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	rows, err := l.q.Query(ctx, `SELECT id, tenant_id, user_id, action, resource_type, resource_id, scope, payload, occurred_at
FROM audit_logs
WHERE tenant_id = $1
  AND ($2 = '' OR resource_type = $2)
  AND ($3 = '' OR resource_id = $3)
  AND ($4 = '' OR action = $4)
  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
  AND ($6::timestamptz IS NULL OR occurred_at <= $6)
ORDER BY occurred_at DESC, id DESC
LIMIT $7`,
		f.TenantID, f.ResourceType, f.ResourceID, f.Action, nullTime(f.From), nullTime(f.To), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Scope, &payload, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
