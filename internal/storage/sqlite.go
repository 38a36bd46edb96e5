package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"dugout-pulse/internal/baseline"
	"dugout-pulse/internal/model"
)

// staleLockAfter frees a run lock left behind by a crashed process.
const staleLockAfter = 6 * time.Hour

// SQLite stores baseline snapshots and the results archive in a local
// SQLite database. It needs no server, so it suits single-host installs.
type SQLite struct {
	db     *sql.DB
	now    func() time.Time
	loc    *time.Location
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) the database and runs migrations.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps modernc from returning SQLITE_BUSY under the worker pool
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db, now: time.Now, logger: logger.With().Str("component", "sqlite_store").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

// SetLocation sets the zone whose calendar day drives snapshot retention.
func (s *SQLite) SetLocation(loc *time.Location) {
	s.loc = loc
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS baseline_snapshots (
			player_key    TEXT NOT NULL,
			snapshot_date TEXT NOT NULL,
			cumulative    TEXT NOT NULL,
			updated_at    INTEGER NOT NULL,
			PRIMARY KEY (player_key, snapshot_date)
		)`,
		`CREATE TABLE IF NOT EXISTS window_runs (
			run_id       TEXT PRIMARY KEY,
			run_date     TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			players      INTEGER NOT NULL,
			unavailable  INTEGER NOT NULL,
			insufficient INTEGER NOT NULL,
			trigger_name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON window_runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS window_results (
			run_date     TEXT NOT NULL,
			window_id    TEXT NOT NULL,
			player_name  TEXT NOT NULL,
			team         TEXT NOT NULL,
			run_id       TEXT NOT NULL,
			position     INTEGER NOT NULL,
			level        TEXT NOT NULL,
			is_client    INTEGER NOT NULL,
			status       TEXT NOT NULL,
			grade        TEXT NOT NULL,
			games_played INTEGER NOT NULL,
			stats        TEXT NOT NULL,
			generated_at INTEGER NOT NULL,
			PRIMARY KEY (run_date, window_id, player_name, team)
		)`,
		`CREATE TABLE IF NOT EXISTS run_locks (
			lock_key    INTEGER PRIMARY KEY,
			acquired_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Store upserts the day's snapshot and prunes expired rows in one transaction.
func (s *SQLite) Store(ctx context.Context, key string, date time.Time, line model.Line) error {
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO baseline_snapshots (player_key, snapshot_date, cumulative, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT (player_key, snapshot_date) DO UPDATE
		SET cumulative = excluded.cumulative, updated_at = excluded.updated_at`,
		key, model.FormatDay(model.Day(date)), string(payload), s.now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	cutoff := model.FormatDay(baseline.PruneBefore(model.DayIn(s.now(), s.loc)))
	if _, err := tx.ExecContext(ctx, `DELETE FROM baseline_snapshots WHERE snapshot_date < ?`, cutoff); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Baseline returns the latest snapshot dated on or before target.
func (s *SQLite) Baseline(ctx context.Context, key string, target time.Time) (baseline.Snapshot, bool, error) {
	var dayStr, payload string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot_date, cumulative
		FROM baseline_snapshots
		WHERE player_key = ? AND snapshot_date <= ?
		ORDER BY snapshot_date DESC
		LIMIT 1`, key, model.FormatDay(model.Day(target))).Scan(&dayStr, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return baseline.Snapshot{}, false, nil
	}
	if err != nil {
		return baseline.Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}

	day, err := model.ParseDay(dayStr)
	if err != nil {
		return baseline.Snapshot{}, false, err
	}
	var line model.Line
	if err := json.Unmarshal([]byte(payload), &line); err != nil {
		return baseline.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return baseline.Snapshot{Key: key, Date: day, Line: line}, true, nil
}

// ArchiveRun writes the run row and all of its results in one transaction.
func (s *SQLite) ArchiveRun(ctx context.Context, run RunRecord, results []ResultRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO window_runs
		(run_id, run_date, started_at, finished_at, players, unavailable, insufficient, trigger_name)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.RunID, model.FormatDay(run.RunDate), run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Players, run.Unavailable, run.Insufficient, run.Trigger,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO window_results
		(run_date, window_id, player_name, team, run_id, position, level, is_client, status, grade, games_played, stats, generated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (run_date, window_id, player_name, team) DO UPDATE
		SET run_id = excluded.run_id,
			position = excluded.position,
			level = excluded.level,
			is_client = excluded.is_client,
			status = excluded.status,
			grade = excluded.grade,
			games_played = excluded.games_played,
			stats = excluded.stats,
			generated_at = excluded.generated_at`)
	if err != nil {
		return fmt.Errorf("prepare result upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			model.FormatDay(r.RunDate), r.Window, r.PlayerName, r.Team, r.RunID, r.Position,
			r.Level, r.IsClient, r.Status, r.Grade, r.GamesPlayed, string(r.Stats), r.GeneratedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert result %s/%s: %w", r.Window, r.PlayerName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// ListResults returns the archived feed for one window and day in roster order.
func (s *SQLite) ListResults(ctx context.Context, window string, day time.Time) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, run_date, window_id, position, player_name, team, level,
			is_client, status, grade, games_played, stats, generated_at
		FROM window_results
		WHERE window_id = ? AND run_date = ?
		ORDER BY position`, window, model.FormatDay(day))
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := make([]ResultRecord, 0)
	for rows.Next() {
		var (
			rec       ResultRecord
			runDate   string
			stats     string
			generated int64
		)
		if err := rows.Scan(&rec.RunID, &runDate, &rec.Window, &rec.Position, &rec.PlayerName, &rec.Team,
			&rec.Level, &rec.IsClient, &rec.Status, &rec.Grade, &rec.GamesPlayed, &stats, &generated); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if rec.RunDate, err = model.ParseDay(runDate); err != nil {
			return nil, err
		}
		rec.Stats = json.RawMessage(stats)
		rec.GeneratedAt = time.UnixMilli(generated).UTC()
		results = append(results, rec)
	}
	return results, rows.Err()
}

// ListRecentRuns lists the most recent runs, newest first.
func (s *SQLite) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, run_date, started_at, finished_at, players, unavailable, insufficient, trigger_name
		FROM window_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var (
			run               RunRecord
			runDate           string
			started, finished int64
		)
		if err := rows.Scan(&run.RunID, &runDate, &started, &finished, &run.Players, &run.Unavailable,
			&run.Insufficient, &run.Trigger); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.RunDate, err = model.ParseDay(runDate); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(started).UTC()
		run.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TryLock claims a row in run_locks. Locks older than staleLockAfter are
// taken over.
func (s *SQLite) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO run_locks (lock_key, acquired_at) VALUES (?, ?)
		ON CONFLICT (lock_key) DO UPDATE SET acquired_at = excluded.acquired_at
		WHERE run_locks.acquired_at < ?`,
		key, now.Unix(), now.Add(-staleLockAfter).Unix())
	if err != nil {
		return nil, false, fmt.Errorf("try run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("try run lock: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.db.ExecContext(ctxUnlock, `DELETE FROM run_locks WHERE lock_key = ?`, key); err != nil {
			s.logger.Warn().Err(err).Int64("key", key).Msg("run unlock failed")
		}
	}
	return unlock, true, nil
}

var (
	_ baseline.Store = (*SQLite)(nil)
	_ Archive        = (*SQLite)(nil)
	_ Locker         = (*SQLite)(nil)
)
