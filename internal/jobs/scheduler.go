// Package jobs runs the cron-scheduled background tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"brainrotMarket/internal/catalog"
	"brainrotMarket/internal/ports"
)

const refreshTimeout = 30 * time.Second

// CatalogRefresher is the part of the catalog cache the refresh job drives.
type CatalogRefresher interface {
	Invalidate()
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	catalog CatalogRefresher
	logger  ports.Logger
}

// NewScheduler registers the catalog refresh on schedule (standard five-field
// cron syntax or a descriptor such as "@every 10m").
func NewScheduler(schedule string, cat CatalogRefresher, logger ports.Logger) (*Scheduler, error) {
	if cat == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Scheduler")
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		catalog: cat,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.RefreshCatalog); err != nil {
		return nil, fmt.Errorf("invalid catalog refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RefreshCatalog drops the cached catalog and warms it again.
func (s *Scheduler) RefreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	s.catalog.Invalidate()
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "[CRON] Catalog refresh failed")
		return
	}
	s.logger.Info(ctx, "[CRON] Catalog refreshed", map[string]interface{}{
		"mutations": len(snap.Mutations),
		"traits":    len(snap.Traits),
	})
}

// Start runs the scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info(context.Background(), "Scheduler stopped")
}
