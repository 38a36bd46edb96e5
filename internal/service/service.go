package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dugout-pulse/internal/alerting"
	"dugout-pulse/internal/logging"
	"dugout-pulse/internal/metrics"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/scheduler"
	"dugout-pulse/internal/storage"
	"dugout-pulse/internal/window"
)

// Run triggers recorded in the archive.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerBackfill  = "backfill"
)

// Roster loads the players for a run.
type Roster interface {
	AllPlayers(ctx context.Context) ([]model.Player, error)
}

// Aggregator evaluates every window for a roster.
type Aggregator interface {
	Run(ctx context.Context, players []model.Player, today time.Time) (*window.Feed, error)
}

// FeedWriter persists a run's feed.
type FeedWriter interface {
	Write(feed *window.Feed) error
}

// Options tune the run service.
type Options struct {
	// Location decides which calendar day "today" is.
	Location      *time.Location
	LockKey       int64
	AlertsEnabled bool
	// MetricsTextfile is rewritten after every run when set.
	MetricsTextfile string
	Now             func() time.Time
}

// Deps are the collaborators of a run. Archive, Locker, Notifier, Metrics
// and Scheduler are optional.
type Deps struct {
	Roster     Roster
	Aggregator Aggregator
	Writer     FeedWriter
	Archive    storage.Archive
	Locker     storage.Locker
	Notifier   alerting.Notifier
	Metrics    *metrics.Recorder
	Scheduler  *scheduler.Scheduler
}

// Summary describes a finished run.
type Summary struct {
	RunID   string
	RunDate time.Time
	Skipped bool
	Players int
	Counts  map[window.Status]int
	Feed    *window.Feed
}

// Service orchestrates roster loading, aggregation, output and alerting.
type Service struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// New constructs the run service.
func New(opts Options, deps Deps, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the scheduled loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := s.ProcessRun(ctx, TriggerScheduled)
		return err
	})
}

// Today is the run day in the configured timezone.
func (s *Service) Today() time.Time {
	return model.Day(s.opts.Now().In(s.opts.Location))
}

// ProcessRun performs one full pass for today. A run that loses the lock to
// another process is skipped, not failed.
func (s *Service) ProcessRun(ctx context.Context, trigger string) (*Summary, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.ForRun(s.logger, runID)
	started := s.opts.Now()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		s.finish(started, err)
		return nil, err
	}
	if !proceed {
		log.Info().Msg("skip run because the lock is held elsewhere")
		if s.deps.Metrics != nil {
			s.deps.Metrics.RunSkipped()
		}
		return &Summary{RunID: runID, Skipped: true}, nil
	}
	if unlock != nil {
		defer unlock()
	}

	summary, err := s.execute(ctx, runID, trigger, started, log)
	s.finish(started, err)
	return summary, err
}

func (s *Service) execute(ctx context.Context, runID, trigger string, started time.Time, log zerolog.Logger) (*Summary, error) {
	today := model.Day(started.In(s.opts.Location))
	log.Info().Str("run_date", model.FormatDay(today)).Str("trigger", trigger).Msg("run started")

	players, err := s.deps.Roster.AllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	feed, err := s.deps.Aggregator.Run(ctx, players, today)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Writer.Write(feed); err != nil {
		return nil, fmt.Errorf("write feeds: %w", err)
	}

	counts := feed.Counts()
	summary := &Summary{RunID: runID, RunDate: today, Players: len(players), Counts: counts, Feed: feed}

	if s.deps.Archive != nil {
		run := storage.RunRecord{
			RunID:        runID,
			RunDate:      today,
			StartedAt:    started,
			FinishedAt:   s.opts.Now(),
			Players:      len(players),
			Unavailable:  counts[window.StatusUnavailable],
			Insufficient: counts[window.StatusInsufficient],
			Trigger:      trigger,
		}
		records, err := Records(runID, feed)
		if err != nil {
			log.Error().Err(err).Msg("encode archive records failed")
		} else if err := s.deps.Archive.ArchiveRun(ctx, run, records); err != nil {
			// feeds are already written, so an archive failure does not fail the run
			log.Error().Err(err).Msg("archive run failed")
		}
	}

	s.notify(ctx, feed, log)
	s.observe(feed)

	log.Info().
		Int("players", len(players)).
		Int("ok", counts[window.StatusOK]).
		Int("insufficient", counts[window.StatusInsufficient]).
		Int("unavailable", counts[window.StatusUnavailable]).
		Msg("run finished")
	return summary, nil
}

func (s *Service) notify(ctx context.Context, feed *window.Feed, log zerolog.Logger) {
	if !s.opts.AlertsEnabled || s.deps.Notifier == nil {
		return
	}
	digest := alerting.NewDigest(feed.RunDate)
	digest.AddFeed(feed)
	if digest.Empty() {
		log.Debug().Msg("no movers to report")
		return
	}
	err := s.deps.Notifier.Notify(ctx, digest.Message())
	if err != nil {
		log.Error().Err(err).Msg("failed to dispatch digest")
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.AlertSent(err)
	}
}

func (s *Service) observe(feed *window.Feed) {
	if s.deps.Metrics == nil {
		return
	}
	for _, id := range window.All {
		tally := map[window.Status]int{}
		for _, r := range feed.Windows[id] {
			tally[r.Status]++
		}
		for _, st := range []window.Status{window.StatusOK, window.StatusInsufficient, window.StatusUnavailable} {
			s.deps.Metrics.SetResults(string(id), string(st), tally[st])
		}
	}
}

func (s *Service) finish(started time.Time, err error) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.RunFinished(started, s.opts.Now(), err)
	if werr := s.deps.Metrics.WriteTextfile(s.opts.MetricsTextfile); werr != nil {
		s.logger.Warn().Err(werr).Msg("metrics textfile not written")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// Records flattens a feed into archive rows. Position is the roster index.
func Records(runID string, feed *window.Feed) ([]storage.ResultRecord, error) {
	var out []storage.ResultRecord
	for _, id := range window.All {
		for i, r := range feed.Windows[id] {
			stats, err := json.Marshal(r.Stats)
			if err != nil {
				return nil, fmt.Errorf("encode stats for %s: %w", r.PlayerName, err)
			}
			out = append(out, storage.ResultRecord{
				RunID:       runID,
				RunDate:     feed.RunDate,
				Window:      string(id),
				Position:    i,
				PlayerName:  r.PlayerName,
				Team:        r.Team,
				Level:       r.Level,
				IsClient:    r.IsClient,
				Status:      string(r.Status),
				Grade:       r.Grade,
				GamesPlayed: r.GamesPlayed,
				Stats:       stats,
				GeneratedAt: feed.Generated,
			})
		}
	}
	return out, nil
}

// ErrNoArchive is returned by Backfill when no archive is configured.
var ErrNoArchive = errors.New("service: backfill needs an archive")

// Backfill recomputes Pro windows for each day in [from, to] and archives
// them. NCAA players are skipped since their past cumulative totals cannot
// be fetched. Feeds and alerts are left untouched.
func (s *Service) Backfill(ctx context.Context, from, to time.Time) (int, error) {
	if s.deps.Archive == nil {
		return 0, ErrNoArchive
	}
	from, to = model.Day(from), model.Day(to)
	if to.Before(from) {
		return 0, fmt.Errorf("backfill range ends before it starts")
	}

	players, err := s.deps.Roster.AllPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load roster: %w", err)
	}
	pro := make([]model.Player, 0, len(players))
	for _, p := range players {
		if p.Level == model.LevelPro {
			pro = append(pro, p)
		}
	}
	if len(pro) == 0 {
		s.logger.Warn().Msg("no Pro players to backfill")
		return 0, nil
	}

	days := 0
	for day := from; !day.After(to); day = model.AddDays(day, 1) {
		runID := uuid.NewString()
		runCtx := logging.WithRunID(ctx, runID)
		started := s.opts.Now()

		feed, err := s.deps.Aggregator.Run(runCtx, pro, day)
		if err != nil {
			return days, fmt.Errorf("backfill %s: %w", model.FormatDay(day), err)
		}
		records, err := Records(runID, feed)
		if err != nil {
			return days, err
		}
		counts := feed.Counts()
		run := storage.RunRecord{
			RunID:        runID,
			RunDate:      day,
			StartedAt:    started,
			FinishedAt:   s.opts.Now(),
			Players:      len(pro),
			Unavailable:  counts[window.StatusUnavailable],
			Insufficient: counts[window.StatusInsufficient],
			Trigger:      TriggerBackfill,
		}
		if err := s.deps.Archive.ArchiveRun(ctx, run, records); err != nil {
			return days, fmt.Errorf("archive %s: %w", model.FormatDay(day), err)
		}
		days++
		s.logger.Info().Str("run_date", model.FormatDay(day)).Int("players", len(pro)).Msg("backfilled day")
	}
	return days, nil
}
