// Package aggregate runs the periodic maintenance loop: rolling raw
// readings into hourly summaries and applying retention policy.
package aggregate

import (
	"context"
	"log"
	"time"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/store"
)

// rollupLookback is how far back each pass re-aggregates. Re-running a
// window is safe because summaries upsert per device-hour.
const rollupLookback = 25 * time.Hour

// Service schedules hourly rollups and retention pruning.
type Service struct {
	cfg   *config.Config
	store store.Store
}

// NewService creates the aggregation service.
func NewService(cfg *config.Config, s store.Store) *Service {
	return &Service{cfg: cfg, store: s}
}

// Run executes the maintenance loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Printf("aggregation loop starting, interval %v", s.cfg.Aggregation.Interval)
	ticker := time.NewTicker(s.cfg.Aggregation.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			log.Println("aggregation loop stopped")
			return
		}
	}
}

// RunOnce performs a single rollup and retention pass.
func (s *Service) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	written, err := s.store.RollupHourly(ctx, now.Add(-rollupLookback), now)
	if err != nil {
		log.Printf("hourly rollup failed: %v", err)
	} else if written > 0 {
		log.Printf("hourly rollup wrote %d bucket(s)", written)
	}

	cutoff := now.AddDate(0, 0, -s.cfg.Retention.ReadingDays)
	if pruned, err := s.store.PruneReadings(ctx, cutoff); err != nil {
		log.Printf("reading retention failed: %v", err)
	} else if pruned > 0 {
		log.Printf("pruned %d reading(s) older than %s", pruned, cutoff.Format(time.RFC3339))
	}

	cmdCutoff := now.AddDate(0, 0, -s.cfg.Retention.CommandDays)
	if removed, err := s.store.CleanupCommands(ctx, cmdCutoff); err != nil {
		log.Printf("command cleanup failed: %v", err)
	} else if removed > 0 {
		log.Printf("cleaned up %d finished command(s)", removed)
	}
}
