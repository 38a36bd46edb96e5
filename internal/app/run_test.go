package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/config"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/output"
	"dugout-pulse/internal/window"
)

func newGameLogServer(t *testing.T, gameDay time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/people/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"people": []map[string]any{{"id": 7, "fullName": "Pro Bat", "active": true}},
		})
	})
	mux.HandleFunc("/api/v1/people/7/stats", func(w http.ResponseWriter, r *http.Request) {
		splits := []map[string]any{}
		if r.URL.Query().Get("season") == strconv.Itoa(gameDay.Year()) {
			splits = append(splits, map[string]any{
				"date": model.FormatDay(gameDay),
				"stat": map[string]any{"plateAppearances": 5, "atBats": 4, "hits": 2, "baseOnBalls": 1},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": []map[string]any{{"type": map[string]string{"displayName": "gameLog"}, "splits": splits}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunOnceWithCorruptSnapshotFileStillWritesFeeds(t *testing.T) {
	dir := t.TempDir()
	today := model.Day(time.Now().UTC())
	srv := newGameLogServer(t, today)

	snapshots := filepath.Join(dir, "baselines.json")
	require.NoError(t, os.WriteFile(snapshots, []byte("{not json"), 0o644))

	clients := filepath.Join(dir, "clients.csv")
	require.NoError(t, os.WriteFile(clients, []byte(
		"Player Name,Org,Level,Position,Draft Class,Tier\n"+
			"Pro Bat,Club,Pro,OF,2022,1\n"+
			"College Bat,State,NCAA,1B,2026,2\n"), 0o644))

	feed := filepath.Join(dir, "ncaa.json")
	require.NoError(t, os.WriteFile(feed, []byte(
		`{"players":[{"name":"College Bat","team":"State","batting":{"g":12,"pa":40,"ab":35,"h":12,"bb":5}}]}`), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
app:
  timezone: UTC
storage:
  backend: file
  snapshot_path: %s
windows:
  season_start: %s
roster:
  clients_url: %s
mlb:
  base_url: %s
  rps: 100
ncaa:
  sources: [feed_file]
  feed_file: %s
output:
  dir: %s
`, snapshots, model.FormatDay(model.AddDays(today, -120)), clients, srv.URL, feed, filepath.Join(dir, "out"))), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	summary, err := NewApp(cfg, zerolog.Nop()).RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Players)

	week, err := output.Read(cfg.Output.Dir, window.Week)
	require.NoError(t, err)
	require.Len(t, week, 2)
	assert.Equal(t, "Pro Bat", week[0].PlayerName)
	assert.Equal(t, window.StatusOK, week[0].Status)
	assert.Equal(t, "College Bat", week[1].PlayerName)
	assert.Equal(t, window.StatusUnavailable, week[1].Status)

	season, err := output.Read(cfg.Output.Dir, window.Season)
	require.NoError(t, err)
	require.Len(t, season, 2)
	assert.Equal(t, window.StatusOK, season[1].Status, "season totals need no stored baseline")

	raw, err := os.ReadFile(snapshots)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw), "corrupt file is left for repair")
}
