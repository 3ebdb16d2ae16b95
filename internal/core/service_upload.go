package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/shoestore/internal/logging"
	"github.com/google/uuid"
)

// ErrUnknownEntity is returned for an entity key nothing is registered under.
var ErrUnknownEntity = errors.New("unknown entity")

// ImportFile imports one uploaded file for a single entity. It shares the
// import slot and timeout with ImportAll and is recorded in the import
// history as a run of its own.
//
// Returns ErrTooManyImports if no slot becomes available within the wait
// period, and ErrFileTooLarge before reading more than the size limit.
func (s *Service) ImportFile(ctx context.Context, entity, fileName string, r io.Reader) (*FileResult, error) {
	def, ok := Get(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	data, err := readLimited(r, s.opts.MaxFileSize)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ImportTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := logging.WithFields(ctx, "run_id", runID, "entity", entity, "file", fileName)
	start := time.Now()

	result := &FileResult{Entity: entity, File: fileName}
	table, err := ParseTable(data, ReadOptions{
		Headerless:        def.Info.Headerless,
		AllowSingleColumn: def.Info.Headerless,
	})
	if err != nil {
		log.Warn("uploaded file unreadable", "error", err)
		result.Fail(fmt.Errorf("%s: %w", fileName, err))
	} else {
		s.importTable(ctx, def, table, result, log)
	}
	result.Duration = time.Since(start)

	bookCtx := context.WithoutCancel(ctx)
	if err := s.recordImportRun(bookCtx, runID, result, start); err != nil {
		log.Warn("import history write failed", "error", err)
	}
	s.recordAudit(bookCtx, AuditLogParams{
		Action:       ActionImport,
		Entity:       entity,
		EntityKey:    runID,
		Detail:       fmt.Sprintf("upload %s, %d of %d rows inserted", fileName, result.RowsInserted, result.RowsSeen),
		RowsAffected: result.RowsInserted,
	})
	return result, nil
}

// readLimited reads r fully, failing once more than limit bytes arrive.
// A limit of zero or less reads without bound.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrFileTooLarge, limit)
	}
	return data, nil
}
