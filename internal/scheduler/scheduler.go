package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked at every scheduled fire time.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Cron is a standard five-field expression evaluated in Location.
	Cron         string
	Location     *time.Location
	RunOnStart   bool
	StartupDelay time.Duration
	// RunTimeout bounds one tick. Zero leaves ticks unbounded.
	RunTimeout time.Duration
}

// Scheduler drives cron-timed execution of aggregation runs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	now      func() time.Time
	logger   zerolog.Logger
}

// New parses the cron expression and constructs a Scheduler.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(opts.Cron)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", opts.Cron, err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first fire time strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.opts.Location))
}

// Run blocks, invoking tick at each fire time until ctx is cancelled. Tick
// errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.RunOnStart {
		s.fire(ctx, tick, s.now().In(s.opts.Location))
	}

	for {
		next := s.Next(s.now())
		s.logger.Info().Time("next_run", next).Msg("waiting for next run")

		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}
		s.fire(ctx, tick, next)
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, at time.Time) {
	runCtx := ctx
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	s.logger.Info().Time("scheduled_for", at).Msg("executing scheduled run")
	if err := tick(runCtx, at); err != nil {
		s.logger.Error().Err(err).Time("scheduled_for", at).Msg("scheduled run failed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
