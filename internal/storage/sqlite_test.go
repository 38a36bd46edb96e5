package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/model"
)

func day(s string) time.Time {
	t, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func openTestSQLite(t *testing.T, today string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "pulse.db"), zerolog.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return day(today).Add(12 * time.Hour) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSnapshots(t *testing.T) {
	s := openTestSQLite(t, "2024-01-10")
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-01"), model.Line{Batting: model.Batting{H: 1}}))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-10"), model.Line{Batting: model.Batting{H: 9}}))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-10"), model.Line{Batting: model.Batting{H: 10}}))

	snap, found, err := s.Baseline(ctx, "A|T", day("2024-01-05"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, day("2024-01-01"), snap.Date)
	assert.Equal(t, 1, snap.Line.Batting.H)

	snap, found, err = s.Baseline(ctx, "A|T", day("2024-01-10"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, snap.Line.Batting.H, "same-day store replaces")

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM baseline_snapshots WHERE player_key = ?`, "A|T").Scan(&count))
	assert.Equal(t, 2, count)

	_, found, err = s.Baseline(ctx, "A|T", day("2023-12-01"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLitePrunes(t *testing.T) {
	s := openTestSQLite(t, "2024-03-01")
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-15"), model.Line{}))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-16"), model.Line{}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM baseline_snapshots`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteArchive(t *testing.T) {
	s := openTestSQLite(t, "2024-06-08")
	ctx := context.Background()
	started := time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC)

	run := RunRecord{RunID: "run-1", RunDate: day("2024-06-08"), StartedAt: started, FinishedAt: started.Add(time.Minute), Players: 2, Trigger: "manual"}
	results := []ResultRecord{
		{RunID: "run-1", RunDate: day("2024-06-08"), Window: "7d", Position: 1, PlayerName: "B", Team: "T", Level: "Pro", Status: "ok", Grade: "🔥 Hot", Stats: json.RawMessage(`{"ops":"1.100"}`), GeneratedAt: started},
		{RunID: "run-1", RunDate: day("2024-06-08"), Window: "7d", Position: 0, PlayerName: "A", Team: "T", Level: "NCAA", IsClient: true, Status: "unavailable", Grade: "— Insufficient", Stats: json.RawMessage(`{}`), GeneratedAt: started},
	}
	require.NoError(t, s.ArchiveRun(ctx, run, results))

	// rerun on the same day replaces rows instead of duplicating them
	results[0].Grade = "✅ Solid"
	run.RunID = "run-2"
	results[0].RunID, results[1].RunID = "run-2", "run-2"
	require.NoError(t, s.ArchiveRun(ctx, run, results))

	got, err := s.ListResults(ctx, "7d", day("2024-06-08"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].PlayerName)
	assert.True(t, got[0].IsClient)
	assert.Equal(t, "✅ Solid", got[1].Grade)
	assert.JSONEq(t, `{"ops":"1.100"}`, string(got[1].Stats))

	runs, err := s.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteRunLock(t *testing.T) {
	s := openTestSQLite(t, "2024-06-08")
	ctx := context.Background()

	unlock, ok, err := s.TryLock(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.TryLock(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok, "second holder is refused")

	unlock()
	unlock2, ok, err := s.TryLock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}

func TestPostgresNotConfigured(t *testing.T) {
	var s *Postgres
	_, _, err := s.Baseline(context.Background(), "A|T", day("2024-01-01"))
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, s.Store(context.Background(), "A|T", day("2024-01-01"), model.Line{}), ErrNotConfigured)
}
