package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// RunRetentionSweep calls Cleanup every interval until ctx is cancelled.
// A non-positive maxAge disables the sweep.
func (s *Scheduler) RunRetentionSweep(ctx context.Context, interval, maxAge time.Duration) error {
	if maxAge <= 0 {
		s.logger.Info("Retention sweep disabled")
		return nil
	}
	if interval <= 0 {
		interval = min(maxAge/10, time.Hour)
		interval = max(interval, time.Minute)
	}

	s.logger.Info("Retention sweep started",
		slog.Duration("interval", interval),
		slog.Duration("max_age", maxAge),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retention sweep stopped")
			return nil
		case <-ticker.C:
			s.Cleanup(maxAge)
		}
	}
}
