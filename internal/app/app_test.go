package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/config"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/output"
	"dugout-pulse/internal/storage"
	"dugout-pulse/internal/window"
)

func graded(name string, role model.Role, line model.Line, status window.Status) window.Result {
	stats := window.FormatStats(role, line)
	if status != window.StatusOK {
		stats = window.MissingStats(role)
	}
	return window.Result{
		PlayerName: name,
		Team:       "Club",
		Level:      "Pro",
		Window:     window.Week,
		Status:     status,
		Grade:      window.TierSolid.Label(),
		Stats:      stats,
	}
}

func sampleResults() []window.Result {
	return []window.Result{
		graded("Singles Hitter", model.RoleHitter, model.Line{Batting: model.Batting{PA: 10, AB: 10, H: 3}}, window.StatusOK),
		graded("Slugger", model.RoleHitter, model.Line{Batting: model.Batting{PA: 10, AB: 8, H: 4, HR: 2, BB: 2}}, window.StatusOK),
		graded("Benched", model.RoleHitter, model.Line{}, window.StatusInsufficient),
		graded("Closer", model.RolePitcher, model.Line{Pitching: model.Pitching{Outs: 27, ER: 1}}, window.StatusOK),
		graded("Starter", model.RolePitcher, model.Line{Pitching: model.Pitching{Outs: 27, ER: 6}}, window.StatusOK),
	}
}

func testApp(t *testing.T) *App {
	t.Helper()
	return NewApp(&config.Config{
		Output: config.OutputConfig{Dir: t.TempDir()},
		Export: config.ExportConfig{MaxBars: 25},
	}, zerolog.Nop())
}

func TestTopBars(t *testing.T) {
	ops := topBars(sampleResults(), MetricOPS, 0)
	require.Len(t, ops, 2)
	assert.Equal(t, "Slugger", ops[0].label)
	assert.Equal(t, "Singles Hitter", ops[1].label)

	era := topBars(sampleResults(), MetricERA, 1)
	require.Len(t, era, 1)
	assert.Equal(t, "Closer", era[0].label)
	assert.Equal(t, "1.00", era[0].value.StringFixed(2))
}

func TestWriteResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "week.csv")
	require.NoError(t, writeResultsCSV(path, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)

	header := rows[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, ".300", rows[1][col("avg")])
	assert.Equal(t, "", rows[1][col("era")])
	assert.Equal(t, "--", rows[3][col("avg")])
	assert.Equal(t, "9", rows[4][col("ip")])
}

func TestExportFromLiveFeed(t *testing.T) {
	a := testApp(t)
	feed := &window.Feed{Windows: map[window.ID][]window.Result{window.Week: sampleResults()}}
	require.NoError(t, output.NewWriter(a.Config.Output.Dir, zerolog.Nop()).Write(feed))

	dir := t.TempDir()
	opts := ExportOptions{
		FeedSelector: FeedSelector{Window: window.Week},
		PNGPath:      filepath.Join(dir, "week.png"),
		CSVPath:      filepath.Join(dir, "week.csv"),
	}
	require.NoError(t, a.Export(context.Background(), opts))
	assert.FileExists(t, opts.PNGPath)
	assert.FileExists(t, opts.CSVPath)

	require.Error(t, a.Export(context.Background(), ExportOptions{FeedSelector: FeedSelector{Window: window.Week}}))
	require.Error(t, a.Export(context.Background(), ExportOptions{FeedSelector: FeedSelector{Window: window.Week}, CSVPath: opts.CSVPath, Metric: "wrc"}))
}

func TestShowPrintsTable(t *testing.T) {
	a := testApp(t)
	feed := &window.Feed{Windows: map[window.ID][]window.Result{window.Week: sampleResults()}}
	require.NoError(t, output.NewWriter(a.Config.Output.Dir, zerolog.Nop()).Write(feed))

	var buf bytes.Buffer
	require.NoError(t, a.Show(context.Background(), &buf, ShowOptions{FeedSelector: FeedSelector{Window: window.Week}, Limit: 4}))
	out := buf.String()
	assert.Contains(t, out, "Slugger")
	assert.Contains(t, out, ".500/.600/1.250, 2 HR")
	assert.Contains(t, out, "9 IP, 1.00 ERA")
	assert.NotContains(t, out, "Starter")

	err := a.Show(context.Background(), &buf, ShowOptions{FeedSelector: FeedSelector{Window: window.Season}})
	require.ErrorIs(t, err, output.ErrNoFeed)

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	err = a.Show(context.Background(), &buf, ShowOptions{FeedSelector: FeedSelector{Window: window.Week, Date: &day}})
	require.Error(t, err, "archive disabled")
}

func TestFromRecordsRestoresTier(t *testing.T) {
	stats, err := json.Marshal(window.FormatStats(model.RoleHitter, model.Line{Batting: model.Batting{PA: 5, AB: 5, H: 5}}))
	require.NoError(t, err)

	results, err := fromRecords([]storage.ResultRecord{{
		PlayerName: "Jo Doe",
		Window:     "7d",
		Status:     "ok",
		Grade:      window.TierHot.Label(),
		Stats:      stats,
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, window.TierHot, results[0].Tier)
	c, ok := results[0].Stats.Get("avg")
	require.True(t, ok)
	assert.Equal(t, "1.000", c.String())
}
