package window

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dugout-pulse/internal/baseline"
	"dugout-pulse/internal/fetcher"
	"dugout-pulse/internal/gamelog"
	"dugout-pulse/internal/logging"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

// Stage tracks how far a (player, window) pair got. Failures are logged with
// the last stage reached.
type Stage int

const (
	StageNotStarted Stage = iota
	StageStrategySelected
	StageComputed
	StageGraded
	StageFormatted
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "not_started"
	case StageStrategySelected:
		return "strategy_selected"
	case StageComputed:
		return "computed"
	case StageGraded:
		return "graded"
	case StageFormatted:
		return "formatted"
	case StageEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Options tune an aggregation pass.
type Options struct {
	Workers int
	// SeasonStart overrides DefaultSeasonStart when set.
	SeasonStart  time.Time
	Gates        map[ID]Gate
	MaxStaleDays int
	Now          func() time.Time
}

// Aggregator runs the window pass over a roster.
type Aggregator struct {
	opts       Options
	games      fetcher.GameLogSource
	cumulative fetcher.CumulativeSource
	store      baseline.Store
	logger     zerolog.Logger
}

// New builds an Aggregator. games serves Pro players; cumulative and store
// serve NCAA players. A nil source leaves that level unavailable.
func New(opts Options, games fetcher.GameLogSource, cumulative fetcher.CumulativeSource, store baseline.Store, logger zerolog.Logger) *Aggregator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		opts:       opts,
		games:      games,
		cumulative: cumulative,
		store:      store,
		logger:     logger.With().Str("component", "window_aggregator").Logger(),
	}
}

// SeasonStart returns the configured season start or the default for today.
func (a *Aggregator) SeasonStart(today time.Time) time.Time {
	if !a.opts.SeasonStart.IsZero() {
		return model.Day(a.opts.SeasonStart)
	}
	return DefaultSeasonStart(today)
}

func (a *Aggregator) gate(id ID) Gate {
	if g, ok := a.opts.Gates[id]; ok {
		return g
	}
	return DefaultGates[id]
}

// run holds the state that lives for exactly one pass.
type run struct {
	today       time.Time
	seasonStart time.Time
	generated   time.Time
	spans       []Span
	games       *gamelog.Accumulator
	logger      zerolog.Logger
}

// Run evaluates every player for every window. Per-player failures become
// unavailable results; only cancellation of ctx fails the pass.
func (a *Aggregator) Run(ctx context.Context, players []model.Player, today time.Time) (*Feed, error) {
	today = model.Day(today)
	r := &run{
		today:       today,
		seasonStart: a.SeasonStart(today),
		generated:   a.opts.Now(),
		logger:      a.logger,
	}
	if id := logging.RunID(ctx); id != "" {
		r.logger = logging.ForRun(a.logger, id)
	}
	r.spans = Spans(today, r.seasonStart)
	if a.games != nil {
		r.games = gamelog.New(a.games, r.logger)
	}

	slots := make([][]Result, len(players))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, p := range players {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error().Str("player", p.Name).Interface("panic", rec).Msg("player evaluation panicked")
					slots[i] = a.allUnavailable(r, p)
				}
			}()
			slots[i] = a.evaluatePlayer(gctx, r, p)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("window pass aborted: %w", err)
	}

	feed := &Feed{RunDate: today, Generated: r.generated, Windows: make(map[ID][]Result, len(r.spans))}
	for wi, span := range r.spans {
		results := make([]Result, len(players))
		for pi := range players {
			results[pi] = slots[pi][wi]
		}
		feed.Windows[span.ID] = results
	}
	return feed, nil
}

func (a *Aggregator) evaluatePlayer(ctx context.Context, r *run, p model.Player) []Result {
	log := r.logger.With().Str("player", p.Name).Str("team", p.Team).Str("level", string(p.Level)).Logger()
	strategy := a.strategyFor(r, p, log)

	out := make([]Result, len(r.spans))
	for i, span := range r.spans {
		out[i] = a.evaluateWindow(ctx, r, strategy, p, span, log)
	}
	return out
}

func (a *Aggregator) allUnavailable(r *run, p model.Player) []Result {
	out := make([]Result, len(r.spans))
	for i, span := range r.spans {
		out[i] = unavailable(p, span.ID, r.generated)
	}
	return out
}

func (a *Aggregator) strategyFor(r *run, p model.Player, log zerolog.Logger) Strategy {
	switch p.Level {
	case model.LevelPro:
		if r.games == nil {
			return nil
		}
		return &perGameLog{acc: r.games, player: p}
	case model.LevelNCAA:
		if a.cumulative == nil || a.store == nil {
			return nil
		}
		return &cumulativeBaseline{
			source:       a.cumulative,
			store:        a.store,
			player:       p,
			today:        r.today,
			seasonStart:  r.seasonStart,
			maxStaleDays: a.opts.MaxStaleDays,
			logger:       log,
		}
	default:
		return nil
	}
}

func (a *Aggregator) evaluateWindow(ctx context.Context, r *run, strategy Strategy, p model.Player, span Span, log zerolog.Logger) (res Result) {
	stage := StageNotStarted
	log = log.With().Str("window", string(span.ID)).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("stage", stage.String()).Interface("panic", rec).Msg("window evaluation panicked")
			res = unavailable(p, span.ID, r.generated)
		}
	}()

	if strategy == nil {
		log.Warn().Str("stage", stage.String()).Msg("no strategy for level")
		return unavailable(p, span.ID, r.generated)
	}
	stage = StageStrategySelected

	computed, err := strategy.Compute(ctx, span)
	if err != nil {
		logFailure(log, err).Err(err).Str("stage", stage.String()).Str("strategy", strategy.Name()).Msg("window unavailable")
		return unavailable(p, span.ID, r.generated)
	}
	stage = StageComputed

	tier := TierInsufficient
	status := StatusInsufficient
	if a.gate(span.ID).Passes(p.Role, computed.Line) {
		status = StatusOK
		if p.Role.Pitches() {
			tier = GradePitcher(statcalc.Pitching(computed.Line.Pitching).ERA)
		} else {
			tier = GradeHitter(statcalc.Batting(computed.Line.Batting).OPS)
		}
	}
	stage = StageGraded

	stats := MissingStats(p.Role)
	if status == StatusOK {
		stats = FormatStats(p.Role, computed.Line)
	}
	stage = StageFormatted

	res = newResult(p, span.ID, r.generated)
	res.Status = status
	res.Tier = tier
	res.Grade = tier.Label()
	res.Stats = stats
	res.GamesPlayed = computed.GamesPlayed
	res.Line = computed.Line
	stage = StageEmitted

	log.Debug().Str("stage", stage.String()).Str("status", string(status)).Str("grade", res.Grade).Msg("window evaluated")
	return res
}

// logFailure picks a level by how actionable the failure is.
func logFailure(log zerolog.Logger, err error) *zerolog.Event {
	switch {
	case errors.Is(err, gamelog.ErrNoGames), errors.Is(err, baseline.ErrNoBaseline),
		errors.Is(err, baseline.ErrUnreadable):
		return log.Debug()
	case errors.Is(err, gamelog.ErrNotResolved), errors.Is(err, fetcher.ErrPlayerNotFound):
		return log.Info()
	case errors.Is(err, fetcher.ErrUnavailable), errors.Is(err, baseline.ErrStaleBaseline):
		return log.Warn()
	default:
		return log.Error()
	}
}
