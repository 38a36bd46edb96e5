package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/baseline"
	"dugout-pulse/internal/fetcher"
	"dugout-pulse/internal/gamelog"
	"dugout-pulse/internal/model"
)

// Computed is a window's counting line before gating and grading.
type Computed struct {
	Line        model.Line
	GamesPlayed int
}

// Strategy computes one player's line for any window. It is chosen once per
// player per run.
type Strategy interface {
	Name() string
	Compute(ctx context.Context, span Span) (Computed, error)
}

// perGameLog sums game logs over the window.
type perGameLog struct {
	acc    *gamelog.Accumulator
	player model.Player
}

func (s *perGameLog) Name() string { return "game_log" }

func (s *perGameLog) Compute(ctx context.Context, span Span) (Computed, error) {
	agg, err := s.acc.Window(ctx, s.player, span.From, span.To)
	if err != nil {
		return Computed{}, err
	}
	return Computed{Line: agg.Line, GamesPlayed: agg.GamesPlayed}, nil
}

// cumulativeBaseline subtracts a stored snapshot from today's season totals.
// The totals are fetched and snapshotted on first use.
type cumulativeBaseline struct {
	source       fetcher.CumulativeSource
	store        baseline.Store
	player       model.Player
	today        time.Time
	seasonStart  time.Time
	maxStaleDays int
	logger       zerolog.Logger

	loaded  bool
	current model.Line
	loadErr error
}

func (s *cumulativeBaseline) Name() string { return "baseline" }

func (s *cumulativeBaseline) load(ctx context.Context) (model.Line, error) {
	if s.loaded {
		return s.current, s.loadErr
	}
	s.loaded = true

	line, err := s.source.FetchCumulative(ctx, s.player)
	if err != nil {
		s.loadErr = fmt.Errorf("cumulative line for %s: %w", s.player.Name, err)
		return model.Line{}, s.loadErr
	}
	s.current = line

	if err := s.store.Store(ctx, s.player.Key(), s.today, line); err != nil {
		// deltas can still be computed from older snapshots
		event := s.logger.Error()
		if errors.Is(err, baseline.ErrUnreadable) {
			// reported once when the store was opened
			event = s.logger.Debug()
		}
		event.Err(err).Str("player", s.player.Name).Msg("storing today's snapshot failed")
	}
	return line, nil
}

func (s *cumulativeBaseline) Compute(ctx context.Context, span Span) (Computed, error) {
	current, err := s.load(ctx)
	if err != nil {
		return Computed{}, err
	}

	var base model.Line
	if span.From.After(s.seasonStart) {
		snap, err := baseline.Lookup(ctx, s.store, s.player.Key(), span.From, s.maxStaleDays)
		if err != nil {
			return Computed{}, err
		}
		base = snap.Line
	}

	delta := baseline.Delta(current, base)
	if s.player.Role.Pitches() {
		delta.Batting = model.Batting{}
	} else {
		delta.Batting = delta.Batting.WithDerivedPA()
		delta.Pitching = model.Pitching{}
	}
	return Computed{Line: delta, GamesPlayed: delta.Games(s.player.Role)}, nil
}
