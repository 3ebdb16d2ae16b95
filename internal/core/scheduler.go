package core

// scheduler.go runs periodic retention jobs.
//
// Audit entries and import history grow with every admin edit and import.
// The scheduler deletes rows older than the retention window once on start
// and then every interval until its context is cancelled. A failed run is
// logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	Retention     time.Duration // Age after which rows are deleted (default: 90 days)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler blocks, purging old audit and import history rows
// until ctx is cancelled. Run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention", cfg.Retention.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := start.Add(-cfg.Retention)

	audit, err := s.PurgeAuditLog(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
	}

	history, err := s.PurgeImportHistory(ctx, cutoff)
	if err != nil {
		slog.Error("import history purge failed", "error", err)
	}

	slog.Info("retention job completed",
		"audit_purged", audit,
		"history_purged", history,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
