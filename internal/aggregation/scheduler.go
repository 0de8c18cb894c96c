package aggregation

import (
	"context"
	"log/slog"
	"time"
)

const snapshotShutdownTimeout = 30 * time.Second

// Scheduler snapshots trend windows on a periodic interval.
// It is stateless: each tick independently copies every tally's current
// count into its previous-window baseline, so trend classification always
// compares against "as of the last cadence boundary".
type Scheduler struct {
	interval   time.Duration
	aggregator *Aggregator
}

// NewScheduler creates a trend-window snapshot scheduler.
func NewScheduler(interval time.Duration, aggregator *Aggregator) *Scheduler {
	return &Scheduler{interval: interval, aggregator: aggregator}
}

// Start begins periodic snapshotting. Runs until context is cancelled,
// taking one final snapshot on the way out so a restart does not lose the
// current window boundary.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting trend snapshot scheduler", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.snapshot(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), snapshotShutdownTimeout)
			defer cancel()

			slog.Info("[Scheduler] Taking final snapshot before shutdown...")
			s.snapshot(shutdownCtx)
			slog.Info("[Scheduler] Final snapshot complete")

			return nil
		}
	}
}

func (s *Scheduler) snapshot(ctx context.Context) {
	if err := s.aggregator.SnapshotAll(ctx); err != nil {
		slog.Error("[Scheduler] Trend snapshot failed", "error", err)
	}
}
