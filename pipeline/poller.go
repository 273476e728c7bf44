package pipeline

import (
	"context"
	"time"
)

// RunPoller performs a non-forced run every interval until ctx is done. Idle
// ticks stop at the timestamp pre-check.
func RunPoller(ctx context.Context, session *Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	session.logger.Info("periodic image check started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			session.logger.Info("periodic image check stopped")
			return
		case <-ticker.C:
			stats, err := session.Run(ctx, false)
			if err != nil {
				session.logger.Error("periodic image check failed", "error", err)
				continue
			}
			if stats.SkippedRun {
				session.logger.Debug("periodic image check: no changes", "duration", stats.Duration)
			}
		}
	}
}
