package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dugout-pulse/internal/alerting"
	"dugout-pulse/internal/baseline"
	"dugout-pulse/internal/config"
	"dugout-pulse/internal/fetcher"
	"dugout-pulse/internal/metrics"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/output"
	"dugout-pulse/internal/roster"
	"dugout-pulse/internal/scheduler"
	"dugout-pulse/internal/server"
	"dugout-pulse/internal/service"
	"dugout-pulse/internal/storage"
	"dugout-pulse/internal/window"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// backend bundles what the configured storage backend provides. Archive and
// Locker are nil for the file backend.
type backend struct {
	snapshots baseline.Store
	archive   storage.Archive
	locker    storage.Locker
	close     func()
}

func (a *App) openBackend(ctx context.Context) (*backend, error) {
	switch a.Config.Storage.Backend {
	case config.BackendSQLite:
		db, err := storage.OpenSQLite(a.Config.Storage.SQLitePath, a.Logger)
		if err != nil {
			return nil, err
		}
		db.SetLocation(a.Config.Location())
		b := &backend{snapshots: db, locker: db, close: func() { _ = db.Close() }}
		if a.Config.Storage.Archive {
			b.archive = db
		}
		return b, nil

	case config.BackendPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgres(pool, a.Logger)
		pg.SetLocation(a.Config.Location())
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		b := &backend{snapshots: pg, locker: pg, close: pg.Close}
		if a.Config.Storage.Archive {
			b.archive = pg
		}
		return b, nil

	default:
		fs := baseline.OpenFile(a.Config.Storage.SnapshotPath, a.Logger, baseline.WithLocation(a.Config.Location()))
		return &backend{snapshots: fs, close: func() {}}, nil
	}
}

// openArchive is for commands that only make sense with an archive.
func (a *App) openArchive(ctx context.Context) (*backend, error) {
	if !a.Config.Storage.Archive {
		return nil, errors.New("storage.archive is disabled; enable it with the sqlite or postgres backend")
	}
	b, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	if b.archive == nil {
		b.close()
		return nil, errors.New("configured backend has no results archive")
	}
	return b, nil
}

func (a *App) newGameSource() fetcher.GameLogSource {
	cfg := a.Config.MLB
	return fetcher.NewMLB(fetcher.MLBOptions{
		BaseURL:   cfg.BaseURL,
		SportIDs:  cfg.SportIDs,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		RPS:       cfg.RPS,
		Burst:     cfg.Burst,
	}, a.Logger)
}

// newCumulativeSource builds the NCAA fallback chain from the configured
// source names, with per-team orders layered on top.
func (a *App) newCumulativeSource() fetcher.CumulativeSource {
	cfg := a.Config.NCAA
	available := map[string]fetcher.CumulativeSource{
		"sidearm": fetcher.NewSidearm(fetcher.SidearmOptions{
			URLs:      cfg.SidearmURLs,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
			RPS:       cfg.RPS,
			Burst:     cfg.Burst,
		}, a.Logger),
	}
	if cfg.FeedFile != "" {
		available["feed_file"] = fetcher.NewFeedFile(cfg.FeedFile, a.Logger)
	}

	pick := func(names []string) []fetcher.CumulativeSource {
		out := make([]fetcher.CumulativeSource, 0, len(names))
		for _, name := range names {
			if src, ok := available[name]; ok {
				out = append(out, src)
			}
		}
		return out
	}

	chain := fetcher.NewChain(pick(cfg.Sources), a.Logger)
	for team, names := range cfg.TeamSources {
		chain.Override(team, pick(names)...)
	}
	return chain
}

func (a *App) newAggregator(snapshots baseline.Store) (*window.Aggregator, error) {
	cfg := a.Config.Windows
	opts := window.Options{
		Workers:      cfg.Workers,
		MaxStaleDays: a.Config.Storage.MaxStaleDays,
		Gates: map[window.ID]window.Gate{
			window.Week:   {MinPA: cfg.Week.MinPA, MinOuts: cfg.Week.MinOuts()},
			window.Month:  {MinPA: cfg.Month.MinPA, MinOuts: cfg.Month.MinOuts()},
			window.Season: {MinPA: cfg.Season.MinPA, MinOuts: cfg.Season.MinOuts()},
		},
	}
	if cfg.SeasonStart != "" {
		start, err := model.ParseDay(cfg.SeasonStart)
		if err != nil {
			return nil, err
		}
		opts.SeasonStart = start
	}
	return window.New(opts, a.newGameSource(), a.newCumulativeSource(), snapshots, a.Logger), nil
}

func (a *App) newRoster() *roster.Client {
	cfg := a.Config.Roster
	return roster.New(roster.Options{
		ClientsURL:     cfg.ClientsURL,
		RecruitsURL:    cfg.RecruitsURL,
		IncludedLevels: cfg.IncludedLevels,
		Timeout:        cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Slack
	return alerting.NewSlackNotifier(cfg.WebhookURL, cfg.Timeout, a.Logger)
}

func (a *App) newService(b *backend, rec *metrics.Recorder, sched *scheduler.Scheduler) (*service.Service, error) {
	agg, err := a.newAggregator(b.snapshots)
	if err != nil {
		return nil, err
	}
	return service.New(service.Options{
		Location:        a.Config.Location(),
		LockKey:         a.Config.Scheduler.AdvisoryLockKey,
		AlertsEnabled:   a.Config.Alerting.Enabled,
		MetricsTextfile: a.Config.Metrics.TextfilePath,
	}, service.Deps{
		Roster:     a.newRoster(),
		Aggregator: agg,
		Writer:     output.NewWriter(a.Config.Output.Dir, a.Logger),
		Archive:    b.archive,
		Locker:     b.locker,
		Notifier:   a.newNotifier(),
		Metrics:    rec,
		Scheduler:  sched,
	}, a.Logger), nil
}

func (a *App) newServer(b *backend, rec *metrics.Recorder) *server.Server {
	cfg := a.Config.Server
	var archive storage.Archive
	if b != nil {
		archive = b.archive
	}
	return server.New(server.Options{
		Addr:           cfg.Addr,
		FeedDir:        a.Config.Output.Dir,
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}, archive, rec.Handler(), a.Logger)
}

// RunOnce performs a single aggregation pass and writes the feeds.
func (a *App) RunOnce(ctx context.Context) (*service.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Scheduler.RunTimeout)
	defer cancel()

	b, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	defer b.close()

	svc, err := a.newService(b, metrics.New(), nil)
	if err != nil {
		return nil, err
	}
	return svc.ProcessRun(ctx, service.TriggerManual)
}

// RunOptions configure the daemon.
type RunOptions struct {
	// Serve also starts the feed server next to the scheduler.
	Serve bool
}

// Run executes the long-running scheduled service.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()
	if b.locker == nil {
		a.Logger.Warn().Msg("file backend has no run lock; do not run two schedulers against one snapshot file")
	}

	sched, err := scheduler.New(scheduler.Options{
		Cron:         a.Config.Scheduler.Cron,
		Location:     a.Config.Location(),
		RunOnStart:   a.Config.Scheduler.RunOnStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunTimeout:   a.Config.Scheduler.RunTimeout,
	}, a.Logger)
	if err != nil {
		return err
	}

	rec := metrics.New()
	svc, err := a.newService(b, rec, sched)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	if opts.Serve {
		srv := a.newServer(b, rec)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	a.Logger.Info().Str("cron", a.Config.Scheduler.Cron).Bool("serve", opts.Serve).Msg("starting scheduled service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scheduled service stopped")
	return nil
}

// Serve runs only the feed server.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var b *backend
	if a.Config.Storage.Archive {
		opened, err := a.openBackend(ctx)
		if err != nil {
			return err
		}
		defer opened.close()
		b = opened
	}
	return a.newServer(b, metrics.New()).ListenAndServe(ctx)
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From time.Time
	To   time.Time
}

// Backfill recomputes and archives Pro windows for past days.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	b, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	svc, err := a.newService(b, nil, nil)
	if err != nil {
		return err
	}
	days, err := svc.Backfill(ctx, opts.From, opts.To)
	a.Logger.Info().Int("days", days).Msg("backfill finished")
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	return nil
}
