package core

// importer.go drives one import run over the source directory.
//
// Entities run strictly in registry order, one file at a time. Each entity
// commits its own transactions, so a failure in a later file never undoes
// an earlier one. Inside the row transaction every row gets a savepoint:
// a storage error on one row rolls back that row only.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ContextCheckInterval is how often (in rows) cancellation is checked.
var ContextCheckInterval = 100

// ErrFileNotFound is returned when no candidate file name exists.
var ErrFileNotFound = errors.New("file not found")

// RowOutcome is what happened to one row.
type RowOutcome int

const (
	RowInserted  RowOutcome = iota
	RowDuplicate            // natural key existed, ignored
	RowSkipped              // invalid, diagnostic recorded
)

// RowIssue rejects a row for a validation reason.
type RowIssue struct {
	Field  string
	Reason string
}

func (e *RowIssue) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// SkipRow returns a RowIssue for field.
func SkipRow(field, reason string) error {
	return &RowIssue{Field: field, Reason: reason}
}

// RowFunc imports row i of the source table within tx.
type RowFunc func(ctx context.Context, tx pgx.Tx, i int) (RowOutcome, error)

// Line returns the source line of row i.
func (ic *ImportContext) Line(i int) int {
	return ic.Table.Line(i)
}

// Value coerces a resolved field of row i using the configured policy.
func (ic *ImportContext) Value(i int, field string, kind CellKind) (CellValue, *CoercionIssue) {
	return ParseCellAs(kind, ic.Columns.Cell(ic.Table, i, field), ic.Options.Coercion)
}

// Text returns the trimmed text of a field, "" for missing values.
func (ic *ImportContext) Text(i int, field string) string {
	v, _ := ic.Value(i, field, CellText)
	return v.Text
}

// WithTx runs fn in a transaction and commits when it returns nil.
func WithTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// InsertRows calls fn for every row of the table inside one transaction,
// isolating each row with a savepoint. Row issues and storage errors skip
// the row; cancellation aborts the whole batch.
func InsertRows(ctx context.Context, ic *ImportContext, fn RowFunc) error {
	return WithTx(ctx, ic.DB, func(tx pgx.Tx) error {
		for i := 0; i < ic.Table.Len(); i++ {
			if i%ContextCheckInterval == 0 && ctx.Err() != nil {
				return fmt.Errorf("import cancelled: %w", ctx.Err())
			}

			savepoint := fmt.Sprintf("sp_%d", i)
			if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
				return fmt.Errorf("create savepoint: %w", err)
			}

			outcome, err := fn(ctx, tx, i)
			if err != nil {
				_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
				if ctx.Err() != nil {
					return fmt.Errorf("import cancelled: %w", ctx.Err())
				}

				var issue *RowIssue
				if errors.As(err, &issue) {
					ic.Result.Skip(ic.Line(i), issue.Field, issue.Reason)
				} else {
					ic.Result.Skip(ic.Line(i), "", "insert failed: "+err.Error())
					ic.Log.Debug("row insert failed", "line", ic.Line(i), "error", err)
				}
				continue
			}

			_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint)

			switch outcome {
			case RowInserted:
				ic.Result.RowsInserted++
			case RowDuplicate:
				ic.Result.Duplicates++
			case RowSkipped:
				// fn recorded the diagnostic
			}
		}
		return nil
	})
}

// LocateFile finds name in dir, also trying the "<name> - Лист1.csv" export
// form and a same-stem .csv file.
func LocateFile(dir, name string) (string, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	candidates := []string{
		name,
		name + " - Лист1.csv",
		stem + ".csv",
	}

	for _, c := range candidates {
		path := filepath.Join(dir, c)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s in %s: %w", name, dir, ErrFileNotFound)
}

// ImportAll imports every registered entity from dir in pipeline order.
// Per-file failures are reported in the result; only a busy import slot is
// returned as an error.
func (s *Service) ImportAll(ctx context.Context, dir string) (*ImportReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ImportTimeout)
		defer cancel()
	}

	if dir == "" {
		dir = s.opts.Dir
	}

	report := &ImportReport{RunID: uuid.NewString(), Dir: dir}
	log := logging.WithFields(ctx, "run_id", report.RunID, "dir", dir)
	log.Info("import started", "entities", EntityCount())

	// Bookkeeping must survive a timed-out import.
	bookCtx := context.WithoutCancel(ctx)
	start := time.Now()

	for _, def := range All() {
		fileStart := time.Now()
		result := s.importEntity(ctx, def, dir)
		report.Files = append(report.Files, result)

		if err := s.recordImportRun(bookCtx, report.RunID, result, fileStart); err != nil {
			log.Warn("import history write failed", "entity", def.Info.Key, "error", err)
		}
	}

	report.Duration = time.Since(start)
	seen, inserted := report.Totals()

	s.recordAudit(bookCtx, AuditLogParams{
		Action:       ActionImport,
		Entity:       "all",
		EntityKey:    report.RunID,
		Detail:       fmt.Sprintf("%d files from %s, %d of %d rows inserted", len(report.Files), dir, inserted, seen),
		RowsAffected: inserted,
	})

	log.Info("import finished",
		"rows_seen", seen,
		"rows_inserted", inserted,
		"failed", report.Failed(),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// importEntity locates, reads, resolves and imports one entity's file.
func (s *Service) importEntity(ctx context.Context, def ImportDefinition, dir string) *FileResult {
	start := time.Now()
	result := &FileResult{Entity: def.Info.Key, File: s.opts.Files[def.Info.Key]}
	log := logging.WithFields(ctx, "entity", def.Info.Key)
	defer func() { result.Duration = time.Since(start) }()

	if ctx.Err() != nil {
		result.Fail(fmt.Errorf("import cancelled: %w", ctx.Err()))
		return result
	}

	path, err := LocateFile(dir, result.File)
	if err != nil {
		log.Warn("source file missing, skipping entity", "file", result.File)
		result.Fail(err)
		return result
	}
	result.File = filepath.Base(path)
	log = log.With("file", result.File)

	table, err := ReadTable(path, ReadOptions{
		Headerless:        def.Info.Headerless,
		AllowSingleColumn: def.Info.Headerless,
		MaxFileSize:       s.opts.MaxFileSize,
	})
	if err != nil {
		log.Warn("source file unreadable, skipping entity", "error", err)
		result.Fail(err)
		return result
	}
	return s.importTable(ctx, def, table, result, log)
}

// importTable resolves the columns of a parsed table and runs the entity's
// import over it, filling result.
func (s *Service) importTable(ctx context.Context, def ImportDefinition, table *SourceTable, result *FileResult, log *slog.Logger) *FileResult {
	result.Format = table.Format
	result.Dropped = table.Dropped
	result.RowsSeen = table.Len()

	cols, err := ResolveColumns(table, s.opts.Synonyms.Apply(def.Info.Key, def.FieldSpecs))
	if err != nil {
		log.Warn("column resolution failed", "error", err)
		result.Fail(err)
		return result
	}

	ic := &ImportContext{
		DB:      s.pool,
		Table:   table,
		Columns: cols,
		Options: s.opts.Import,
		Result:  result,
		Log:     log,
	}

	if err := def.Import(ctx, ic); err != nil {
		log.Error("entity import failed", "error", err)
		// The row transaction was rolled back.
		result.RowsInserted = 0
		result.Fail(err)
		return result
	}

	if result.RowsInserted > result.RowsSeen {
		log.Error("inserted more rows than read", "seen", result.RowsSeen, "inserted", result.RowsInserted)
		result.RowsInserted = result.RowsSeen
	}

	log.Info("entity imported",
		"format", result.Format,
		"rows_seen", result.RowsSeen,
		"rows_inserted", result.RowsInserted,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"dropped", result.Dropped,
	)
	return result
}
