package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dugout-pulse/internal/baseline"
	"dugout-pulse/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS baseline_snapshots (
    player_key    TEXT        NOT NULL,
    snapshot_date DATE        NOT NULL,
    cumulative    JSONB       NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (player_key, snapshot_date)
);
CREATE TABLE IF NOT EXISTS window_runs (
    run_id       UUID        PRIMARY KEY,
    run_date     DATE        NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    players      INTEGER     NOT NULL,
    unavailable  INTEGER     NOT NULL,
    insufficient INTEGER     NOT NULL,
    trigger      TEXT        NOT NULL
);
CREATE TABLE IF NOT EXISTS window_results (
    run_date     DATE        NOT NULL,
    window_id    TEXT        NOT NULL,
    player_name  TEXT        NOT NULL,
    team         TEXT        NOT NULL,
    run_id       UUID        NOT NULL,
    position     INTEGER     NOT NULL,
    level        TEXT        NOT NULL,
    is_client    BOOLEAN     NOT NULL,
    status       TEXT        NOT NULL,
    grade        TEXT        NOT NULL,
    games_played INTEGER     NOT NULL,
    stats        JSONB       NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_date, window_id, player_name, team)
);`

	upsertSnapshotSQL = `INSERT INTO baseline_snapshots (
        player_key,
        snapshot_date,
        cumulative
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (player_key, snapshot_date) DO UPDATE
    SET
        cumulative = EXCLUDED.cumulative,
        updated_at = now();`

	pruneSnapshotsSQL = `DELETE FROM baseline_snapshots WHERE snapshot_date < $1;`

	latestSnapshotSQL = `SELECT
        snapshot_date,
        cumulative
    FROM baseline_snapshots
    WHERE player_key = $1
      AND snapshot_date <= $2
    ORDER BY snapshot_date DESC
    LIMIT 1;`

	insertRunSQL = `INSERT INTO window_runs (
        run_id,
        run_date,
        started_at,
        finished_at,
        players,
        unavailable,
        insufficient,
        trigger
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (run_id) DO NOTHING;`

	upsertResultSQL = `INSERT INTO window_results (
        run_date,
        window_id,
        player_name,
        team,
        run_id,
        position,
        level,
        is_client,
        status,
        grade,
        games_played,
        stats,
        generated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (run_date, window_id, player_name, team) DO UPDATE
    SET
        run_id       = EXCLUDED.run_id,
        position     = EXCLUDED.position,
        level        = EXCLUDED.level,
        is_client    = EXCLUDED.is_client,
        status       = EXCLUDED.status,
        grade        = EXCLUDED.grade,
        games_played = EXCLUDED.games_played,
        stats        = EXCLUDED.stats,
        generated_at = EXCLUDED.generated_at;`

	listResultsSQL = `SELECT
        run_id::text,
        run_date,
        window_id,
        position,
        player_name,
        team,
        level,
        is_client,
        status,
        grade,
        games_played,
        stats,
        generated_at
    FROM window_results
    WHERE window_id = $1
      AND run_date = $2
    ORDER BY position;`

	listRecentRunsSQL = `SELECT
        run_id::text,
        run_date,
        started_at,
        finished_at,
        players,
        unavailable,
        insufficient,
        trigger
    FROM window_runs
    ORDER BY started_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// Postgres stores baseline snapshots and the results archive in PostgreSQL.
type Postgres struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	loc    *time.Location
	logger zerolog.Logger
}

// NewPostgres wires a pgx pool into a Postgres store.
func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) *Postgres {
	return &Postgres{
		pool:   pool,
		now:    time.Now,
		logger: logger.With().Str("component", "pg_store").Logger(),
	}
}

// SetLocation sets the zone whose calendar day drives snapshot retention.
func (s *Postgres) SetLocation(loc *time.Location) {
	s.loc = loc
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Postgres) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pgSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Postgres) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			s.logger.Warn().Err(err).Int64("key", key).Msg("advisory unlock failed")
		}
		conn.Release()
	}
	return unlock, true, nil
}

// Store upserts the day's snapshot and prunes expired rows in one transaction.
func (s *Postgres) Store(ctx context.Context, key string, date time.Time, line model.Line) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertSnapshotSQL, key, model.Day(date), payload); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx, pruneSnapshotsSQL, baseline.PruneBefore(model.DayIn(s.now(), s.loc))); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Baseline returns the latest snapshot dated on or before target.
func (s *Postgres) Baseline(ctx context.Context, key string, target time.Time) (baseline.Snapshot, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return baseline.Snapshot{}, false, err
	}

	var (
		day     time.Time
		payload []byte
	)
	err = pool.QueryRow(ctx, latestSnapshotSQL, key, model.Day(target)).Scan(&day, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return baseline.Snapshot{}, false, nil
	}
	if err != nil {
		return baseline.Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}

	var line model.Line
	if err := json.Unmarshal(payload, &line); err != nil {
		return baseline.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return baseline.Snapshot{Key: key, Date: model.Day(day), Line: line}, true, nil
}

// ArchiveRun writes the run row and all of its results in one transaction.
func (s *Postgres) ArchiveRun(ctx context.Context, run RunRecord, results []ResultRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertRunSQL,
		run.RunID,
		model.Day(run.RunDate),
		run.StartedAt,
		run.FinishedAt,
		run.Players,
		run.Unavailable,
		run.Insufficient,
		run.Trigger,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(upsertResultSQL,
			model.Day(r.RunDate),
			r.Window,
			r.PlayerName,
			r.Team,
			r.RunID,
			r.Position,
			r.Level,
			r.IsClient,
			r.Status,
			r.Grade,
			r.GamesPlayed,
			[]byte(r.Stats),
			r.GeneratedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// ListResults returns the archived feed for one window and day in roster order.
func (s *Postgres) ListResults(ctx context.Context, window string, day time.Time) ([]ResultRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listResultsSQL, window, model.Day(day))
	if queryErr != nil {
		return nil, fmt.Errorf("list results: %w", queryErr)
	}
	defer rows.Close()

	results := make([]ResultRecord, 0)
	for rows.Next() {
		var (
			rec   ResultRecord
			stats []byte
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.RunDate,
			&rec.Window,
			&rec.Position,
			&rec.PlayerName,
			&rec.Team,
			&rec.Level,
			&rec.IsClient,
			&rec.Status,
			&rec.Grade,
			&rec.GamesPlayed,
			&stats,
			&rec.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		rec.Stats = json.RawMessage(stats)
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *Postgres) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(
			&run.RunID,
			&run.RunDate,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Players,
			&run.Unavailable,
			&run.Insufficient,
			&run.Trigger,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

var (
	_ baseline.Store = (*Postgres)(nil)
	_ Archive        = (*Postgres)(nil)
	_ Locker         = (*Postgres)(nil)
)
