// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/jackc/pgx/v5"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

var seedRoles = []core.Role{core.RoleAdmin, core.RoleManager, core.RoleClient, core.RoleGuest}

var seedStatuses = []string{"Новый", "В сборке", "Доставлен в ПВЗ", "Завершен", "Отменен"}

// AuditLogger records administrative actions.
type AuditLogger interface {
	LogAudit(ctx context.Context, params core.AuditLogParams) (*core.AuditEntry, error)
}

// ResetDbs handles database reset operations.
type ResetDbs struct {
	DB    core.TxBeginner
	Audit AuditLogger
}

type dbResetFn func(ctx context.Context, tx pgx.Tx) error

// ResetAll truncates all data tables, restarts their sequences and restores
// the seeded roles and order statuses. Import history and the audit log are
// kept. This is a destructive operation - use with caution.
func (r *ResetDbs) ResetAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	err := core.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return r.runResets(ctx, tx, []dbResetFn{
			truncateData,
			seedLookups,
		})
	})
	if err != nil {
		return fmt.Errorf("reset database: %w", err)
	}

	logging.FromContext(ctx).Warn("database reset", "tables", len(core.DataTables))

	if r.Audit != nil {
		if _, err := r.Audit.LogAudit(ctx, core.AuditLogParams{
			Action: core.ActionReset,
			Entity: "database",
			Detail: strings.Join(core.DataTables, ", "),
		}); err != nil {
			logging.FromContext(ctx).Warn("audit log write failed", "action", core.ActionReset, "error", err)
		}
	}
	return nil
}

func (r *ResetDbs) runResets(ctx context.Context, tx pgx.Tx, resets []dbResetFn) error {
	for _, reset := range resets {
		if err := reset(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func truncateData(ctx context.Context, tx pgx.Tx) error {
	idents := make([]string, len(core.DataTables))
	for i, t := range core.DataTables {
		idents[i] = pgx.Identifier{t}.Sanitize()
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+strings.Join(idents, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func seedLookups(ctx context.Context, tx pgx.Tx) error {
	for _, role := range seedRoles {
		if _, err := tx.Exec(ctx, "INSERT INTO role (role_name) VALUES ($1)", string(role)); err != nil {
			return fmt.Errorf("seed role %s: %w", role, err)
		}
	}
	for _, status := range seedStatuses {
		if _, err := tx.Exec(ctx, "INSERT INTO order_status (status_name) VALUES ($1)", status); err != nil {
			return fmt.Errorf("seed status %s: %w", status, err)
		}
	}
	return nil
}
