package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/google/uuid"
)

// DefaultHistoryLimit caps audit and import history listings.
const DefaultHistoryLimit = 100

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport        AuditAction = "import"
	ActionReset         AuditAction = "reset"
	ActionProductCreate AuditAction = "product_create"
	ActionProductUpdate AuditAction = "product_update"
	ActionProductDelete AuditAction = "product_delete"
	ActionOrderCreate   AuditAction = "order_create"
	ActionOrderUpdate   AuditAction = "order_update"
	ActionOrderDelete   AuditAction = "order_delete"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string        `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Entity       string        `json:"entity"`
	EntityKey    string        `json:"entityKey,omitempty"`
	Actor        string        `json:"actor,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// Actor and IP address are taken from the context.
type AuditLogParams struct {
	Action       AuditAction
	Entity       string
	EntityKey    string
	Detail       string
	RowsAffected int
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionReset:
		return SeverityCritical
	case ActionImport, ActionProductDelete, ActionOrderDelete:
		return SeverityHigh
	case ActionProductCreate, ActionOrderCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit creates a new audit log entry.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	entry := &AuditEntry{
		ID:           uuid.NewString(),
		Action:       params.Action,
		Severity:     determineSeverity(params.Action),
		Entity:       params.Entity,
		EntityKey:    params.EntityKey,
		Actor:        actorFromContext(ctx),
		IPAddress:    GetIPAddressFromContext(ctx),
		Detail:       params.Detail,
		RowsAffected: params.RowsAffected,
	}

	const query = `
		INSERT INTO audit_log (id, action, severity, entity, entity_key, actor, ip_address, detail, rows_affected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		entry.ID, string(entry.Action), string(entry.Severity), entry.Entity, entry.EntityKey,
		entry.Actor, entry.IPAddress, entry.Detail, entry.RowsAffected,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// recordAudit writes an audit entry; failures are logged, not returned.
func (s *Service) recordAudit(ctx context.Context, params AuditLogParams) {
	if _, err := s.LogAudit(ctx, params); err != nil {
		logging.FromContext(ctx).Warn("audit log write failed",
			"action", params.Action,
			"entity", params.Entity,
			"error", err,
		)
	}
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	Entity    string
	Action    AuditAction
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// ListAudit retrieves audit log entries, newest first.
func (s *Service) ListAudit(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > DefaultHistoryLimit {
		filter.Limit = DefaultHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	wb := NewWhereBuilder()
	wb.Add("entity", filter.Entity)
	wb.Add("action", string(filter.Action))
	wb.AddTimestampRange("created_at", filter.StartTime, filter.EndTime)
	where, args := wb.Build()

	n := wb.NextArgIndex()
	query := fmt.Sprintf(`
		SELECT id::text, action, severity, entity, entity_key, actor, ip_address, detail, rows_affected, created_at
		FROM audit_log%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, n, n+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, filter.Limit)
	for rows.Next() {
		var e AuditEntry
		var action, severity string
		if err := rows.Scan(&e.ID, &action, &severity, &e.Entity, &e.EntityKey, &e.Actor,
			&e.IPAddress, &e.Detail, &e.RowsAffected, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = AuditAction(action)
		e.Severity = AuditSeverity(severity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeAuditLog deletes audit entries older than cutoff.
func (s *Service) PurgeAuditLog(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM audit_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}
