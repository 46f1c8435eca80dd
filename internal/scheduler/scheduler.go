// Package scheduler runs the two cron-triggered jobs: a weekly refresh
// of the on-disk certificate pools into the store, and a daily pass
// over auto-renewal candidates.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

// triggerScheduled is the trigger value recorded against scheduler-driven
// refreshes, distinguishing them from manual/API-driven ones in logs and
// the cache.invalidate payload.
const triggerScheduled = "scheduled"

// Refresher is the subset of internal/orchestrator.Orchestrator the
// scheduler depends on for the weekly pool import.
type Refresher interface {
	Refresh(ctx context.Context, store certificate.Store, trigger string) error
}

// AutoRenewer is the subset of internal/orchestrator.Orchestrator the
// scheduler depends on for the daily auto-renewal pass.
type AutoRenewer interface {
	AutoRenew(ctx context.Context) (orchestrator.AutoRenewResult, error)
}

// Scheduler runs the weekly pool-import and daily auto-renewal jobs on a
// cron schedule derived from ScheduleConfig, gated by
// ScheduleConfig.Enabled.
type Scheduler struct {
	cfg       config.ScheduleConfig
	refresher Refresher
	renewer   AutoRenewer
	logger    observability.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New constructs a Scheduler. It does not start any jobs until Start is
// called.
func New(cfg config.ScheduleConfig, refresher Refresher, renewer AutoRenewer, logger observability.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		refresher: refresher,
		renewer:   renewer,
		logger:    logger,
	}
}

// Start registers and runs the weekly and daily jobs. A no-op, logged at
// info level, when ScheduleConfig.Enabled is false.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if !s.cfg.Enabled {
		s.logger.Info(ctx, "scheduler disabled")
		return nil
	}

	c := cron.New()

	weeklySpec := fmt.Sprintf("%d %d * * %d", s.cfg.WeeklyMinute, s.cfg.WeeklyHour, s.cfg.WeeklyDay)
	if _, err := c.AddFunc(weeklySpec, func() { s.runWeeklyImport(context.Background()) }); err != nil {
		return fmt.Errorf("register weekly pool-import job: %w", err)
	}

	dailySpec := fmt.Sprintf("%d %d * * *", s.cfg.DailyMinute, s.cfg.DailyHour)
	if _, err := c.AddFunc(dailySpec, func() { s.runDailyAutoRenew(context.Background()) }); err != nil {
		return fmt.Errorf("register daily auto-renewal job: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true

	s.logger.Info(ctx, "scheduler started",
		observability.String("weekly_spec", weeklySpec),
		observability.String("daily_spec", dailySpec))
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight job to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info(context.Background(), "scheduler stopped")
	return nil
}

// runWeeklyImport imports both pool-backed stores.
func (s *Scheduler) runWeeklyImport(ctx context.Context) {
	for _, store := range []certificate.Store{certificate.StoreWebsites, certificate.StoreAPIs} {
		if err := s.refresher.Refresh(ctx, store, triggerScheduled); err != nil {
			s.logger.Error(ctx, err, "scheduled pool import failed", observability.Store(string(store)))
		}
	}
}

// runDailyAutoRenew runs the auto-renewal loop.
func (s *Scheduler) runDailyAutoRenew(ctx context.Context) {
	result, err := s.renewer.AutoRenew(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "scheduled auto-renewal failed")
		return
	}
	s.logger.Info(ctx, "scheduled auto-renewal complete",
		observability.Int("considered", result.Considered),
		observability.Int("renewed", result.Renewed),
		observability.Int("failed", result.Failed),
		observability.Int("skipped", result.Skipped))
}
