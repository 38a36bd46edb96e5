// Package gamelog sums per-game records over a date window for sources that
// publish one record per game.
package gamelog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/fetcher"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

var (
	// ErrNotResolved means the source has no identifier for the player.
	ErrNotResolved = errors.New("gamelog: player not resolved")
	// ErrNoGames means the player resolved but played no games in the window.
	ErrNoGames = errors.New("gamelog: no games in window")
)

// Aggregate is the summed line for one window.
type Aggregate struct {
	Line        model.Line
	GamesPlayed int
}

// Accumulator is scoped to a single run. Name resolutions are cached for its
// lifetime, so build a new one per run.
type Accumulator struct {
	source fetcher.GameLogSource
	logger zerolog.Logger

	mu       sync.Mutex
	resolved map[string]resolution
}

type resolution struct {
	id  string
	err error
}

// New builds an accumulator over a per-game source.
func New(source fetcher.GameLogSource, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		source:   source,
		logger:   logger.With().Str("component", "gamelog").Logger(),
		resolved: make(map[string]resolution),
	}
}

// Window sums every game in [from, to], inclusive on both ends.
func (a *Accumulator) Window(ctx context.Context, player model.Player, from, to time.Time) (Aggregate, error) {
	id, err := a.resolve(ctx, player.Name)
	if err != nil {
		return Aggregate{}, err
	}

	from, to = model.Day(from), model.Day(to)
	group := fetcher.GroupFor(player.Role)

	records, err := a.source.GameLog(ctx, id, group, from, to)
	if err != nil {
		return Aggregate{}, fmt.Errorf("game log for %s: %w", player.Name, err)
	}

	var agg Aggregate
	for _, rec := range records {
		day := model.Day(rec.Date)
		if day.Before(from) || day.After(to) {
			continue
		}

		if group == fetcher.GroupPitching {
			p := rec.Pitching
			outs, err := statcalc.ParseOuts(rec.InningsPitched)
			if err != nil {
				a.logger.Warn().Err(err).
					Str("player", player.Name).
					Str("date", model.FormatDay(day)).
					Str("innings_pitched", rec.InningsPitched).
					Msg("malformed innings pitched, counting zero outs")
			}
			p.Outs = outs
			agg.Line.Pitching = agg.Line.Pitching.Add(p)
		} else {
			agg.Line.Batting = agg.Line.Batting.Add(rec.Batting.WithDerivedPA())
		}
		agg.GamesPlayed++
	}

	if agg.GamesPlayed == 0 {
		return Aggregate{}, fmt.Errorf("%w: %s %s..%s", ErrNoGames, player.Name, model.FormatDay(from), model.FormatDay(to))
	}
	return agg, nil
}

// resolve caches both hits and definitive misses. Transient source failures
// are not cached so a later window may retry.
func (a *Accumulator) resolve(ctx context.Context, name string) (string, error) {
	a.mu.Lock()
	res, ok := a.resolved[name]
	a.mu.Unlock()
	if ok {
		return res.id, res.err
	}

	id, err := a.source.Resolve(ctx, name)
	switch {
	case err == nil:
		res = resolution{id: id}
	case errors.Is(err, fetcher.ErrPlayerNotFound):
		res = resolution{err: fmt.Errorf("%w: %v", ErrNotResolved, err)}
	default:
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}

	a.mu.Lock()
	a.resolved[name] = res
	a.mu.Unlock()
	return res.id, res.err
}
