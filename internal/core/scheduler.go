package core

// scheduler.go runs history retention in the background.
//
// The job runs once on start and then every interval until the context is
// cancelled. A failed prune is logged and retried on the next tick; it never
// stops the application.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls how long ingestion history is kept.
type RetentionConfig struct {
	MaxAge   time.Duration // Entries older than this are removed (default: 7 days)
	Interval time.Duration // How often to run (default: 1h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	return c
}

// StartRetentionScheduler prunes expired history entries periodically.
// It blocks until ctx is cancelled; run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history retention started", "max_age", cfg.MaxAge, "interval", cfg.Interval)

	s.pruneHistory(ctx, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg.MaxAge)
		}
	}
}

// pruneHistory performs one retention pass.
func (s *Service) pruneHistory(ctx context.Context, maxAge time.Duration) {
	start := time.Now()
	removed, err := s.history.Prune(ctx, s.now().Add(-maxAge))
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("history pruned",
		"entries_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
