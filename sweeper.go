package skyodyssey

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// SweepScheduler runs periodic cache sweeps in daemon mode. One sweep always
// runs immediately on Start so a restarted process never serves stale or
// invalid entries before the first tick.
type SweepScheduler struct {
	cron    *cron.Cron
	cache   CacheStore
	metrics *MetricsCollector
	logger  Logger
	spec    string
}

// NewSweepScheduler creates a scheduler sweeping cache every intervalHours.
func NewSweepScheduler(cache CacheStore, intervalHours int, metrics *MetricsCollector, logger Logger) *SweepScheduler {
	if intervalHours <= 0 {
		intervalHours = 1
	}
	return &SweepScheduler{
		cron:    cron.New(),
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *SweepScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	if s.logger != nil {
		s.logger.Info("sweep scheduler started", "spec", s.spec)
	}
	s.runSweep(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SweepScheduler) runSweep(ctx context.Context) {
	removed := s.cache.Sweep(ctx)
	s.metrics.RecordSweep(removed)
	if s.logger != nil {
		s.logger.Info("cache sweep", "removed", removed)
	}
}
