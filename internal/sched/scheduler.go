package sched

import (
	"context"
	"time"

	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/store"
)

// Runner is the pipeline triggered on every tick.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler drives the poll loop: a recurring tick at the user-configured
// interval plus a manual trigger channel. Cycle errors are logged and never
// stop the loop; the next tick is the retry.
type Scheduler struct {
	store   store.Store
	runner  Runner
	trigger chan struct{}
	unit    time.Duration // tick unit, minutes in production
}

func New(st store.Store, runner Runner) *Scheduler {
	return &Scheduler{
		store:   st,
		runner:  runner,
		trigger: make(chan struct{}, 1),
		unit:    time.Minute,
	}
}

// Trigger requests an immediate cycle, e.g. from the manual refresh endpoint.
// Pending triggers coalesce; manual refreshes ignore the snooze gate.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start runs the loop until the context is cancelled. The interval is re-read
// from settings on every tick so changes apply without a restart.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.Get()

	interval := s.interval(ctx)
	ticker := time.NewTicker(time.Duration(interval) * s.unit)
	defer ticker.Stop()

	log.Info().Int("interval", interval).Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler stopped")
			return

		case <-s.trigger:
			s.runCycle(ctx)

		case <-ticker.C:
			settings, err := s.store.GetSettings(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to read settings for tick")
				continue
			}

			if next := normalizeInterval(settings.Interval); next != interval {
				interval = next
				ticker.Reset(time.Duration(interval) * s.unit)
				log.Info().Int("interval", interval).Msg("Poll interval updated")
			}

			if settings.Snoozed(time.Now()) {
				log.Debug().Int64("snooze_until", settings.SnoozeUntil).Msg("Polling snoozed, skipping tick")
				continue
			}

			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if err := s.runner.RunCycle(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("Cycle failed")
	}
}

func (s *Scheduler) interval(ctx context.Context) int {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to read settings, using default interval")
		return 1
	}
	return normalizeInterval(settings.Interval)
}

func normalizeInterval(interval int) int {
	if interval < 1 {
		return 1
	}
	return interval
}
