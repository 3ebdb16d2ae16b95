package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportRunEntry is one stored file result of an import run.
type ImportRunEntry struct {
	ID           string    `json:"id"`
	RunID        string    `json:"runId"`
	Entity       string    `json:"entity"`
	FileName     string    `json:"fileName"`
	RowsSeen     int       `json:"rowsSeen"`
	RowsInserted int       `json:"rowsInserted"`
	RowsSkipped  int       `json:"rowsSkipped"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// recordImportRun stores a file result. Failures are returned so the caller
// can log them; they never fail the import itself.
func (s *Service) recordImportRun(ctx context.Context, runID string, r *FileResult, started time.Time) error {
	const query = `
		INSERT INTO import_run (id, run_id, entity, file_name, rows_seen, rows_inserted, rows_skipped, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		uuid.NewString(), runID, r.Entity, r.File,
		r.RowsSeen, r.RowsInserted, r.Skipped+r.Duplicates, r.Error,
		started, started.Add(r.Duration),
	)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

// ImportHistory returns stored file results, newest first. An empty entity
// returns all entities.
func (s *Service) ImportHistory(ctx context.Context, entity string, limit int) ([]ImportRunEntry, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	wb := NewWhereBuilder()
	wb.Add("entity", entity)
	where, args := wb.Build()

	query := fmt.Sprintf(`
		SELECT id::text, run_id::text, entity, file_name, rows_seen, rows_inserted, rows_skipped, error, started_at, finished_at
		FROM import_run%s
		ORDER BY started_at DESC, entity
		LIMIT $%d`, where, wb.NextArgIndex())
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import history: %w", err)
	}
	defer rows.Close()

	var entries []ImportRunEntry
	for rows.Next() {
		var e ImportRunEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Entity, &e.FileName, &e.RowsSeen, &e.RowsInserted,
			&e.RowsSkipped, &e.Error, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeImportHistory deletes import history older than cutoff.
func (s *Service) PurgeImportHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM import_run WHERE started_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge import history: %w", err)
	}
	return tag.RowsAffected(), nil
}
