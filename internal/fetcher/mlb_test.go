package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newMLBServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/people/search", func(w http.ResponseWriter, r *http.Request) {
		people := []map[string]any{}
		if r.URL.Query().Get("names") == "Jack Smith" {
			people = append(people,
				map[string]any{"id": 11, "fullName": "Jack Smith", "active": false},
				map[string]any{"id": 22, "fullName": "Jack Smith", "active": true},
			)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"people": people})
	})
	mux.HandleFunc("/api/v1/people/22/stats", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("stats") != "gameLog" || q.Get("startDate") != "06/01/2024" || q.Get("endDate") != "06/08/2024" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stat := map[string]any{"atBats": 4, "hits": 2, "homeRuns": 1, "plateAppearances": 5, "baseOnBalls": 1}
		if q.Get("group") == "pitching" {
			stat = map[string]any{"inningsPitched": "5.2", "earnedRuns": 2, "strikeOuts": 7, "hits": 4}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": []map[string]any{{
				"type": map[string]string{"displayName": "gameLog"},
				"splits": []map[string]any{
					{"date": "2024-06-03", "stat": stat},
					{"date": "not-a-date", "stat": stat},
				},
			}},
		})
	})
	return httptest.NewServer(mux)
}

func TestMLBResolvePrefersActiveExactMatch(t *testing.T) {
	srv := newMLBServer(t)
	defer srv.Close()

	m := NewMLB(MLBOptions{BaseURL: srv.URL, Timeout: time.Second, RPS: 100}, testLogger())

	id, err := m.Resolve(context.Background(), "Jack Smith")
	require.NoError(t, err)
	assert.Equal(t, "22", id)

	_, err = m.Resolve(context.Background(), "Nobody Here")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestMLBGameLog(t *testing.T) {
	srv := newMLBServer(t)
	defer srv.Close()

	m := NewMLB(MLBOptions{BaseURL: srv.URL, Timeout: time.Second, RPS: 100}, testLogger())
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)

	records, err := m.GameLog(context.Background(), "22", GroupHitting, from, to)
	require.NoError(t, err)
	require.Len(t, records, 1, "unparsable dates are skipped")
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, 4, records[0].Batting.AB)
	assert.Equal(t, 1, records[0].Batting.Games)

	records, err = m.GameLog(context.Background(), "22", GroupPitching, from, to)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5.2", records[0].InningsPitched)
	assert.Equal(t, 2, records[0].Pitching.ER)
}

func TestMLBGameLogSpanningNewYearQueriesEachSeason(t *testing.T) {
	var queried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queried = append(queried, q.Get("season")+" "+q.Get("startDate")+"-"+q.Get("endDate"))
		splits := []map[string]any{}
		switch q.Get("season") {
		case "2024":
			splits = append(splits, map[string]any{"date": "2024-09-20", "stat": map[string]any{"atBats": 4, "hits": 3}})
		case "2025":
			splits = append(splits, map[string]any{"date": "2025-01-10", "stat": map[string]any{"atBats": 3, "hits": 1}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stats": []map[string]any{{"type": map[string]string{"displayName": "gameLog"}, "splits": splits}},
		})
	}))
	defer srv.Close()

	m := NewMLB(MLBOptions{BaseURL: srv.URL, Timeout: time.Second, RPS: 100}, testLogger())
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	records, err := m.GameLog(context.Background(), "22", GroupHitting, from, to)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Batting.H)
	assert.Equal(t, 1, records[1].Batting.H)
	assert.Equal(t, []string{
		"2024 02/01/2024-12/31/2024",
		"2025 01/01/2025-01/15/2025",
	}, queried)
}

func TestMLBServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewMLB(MLBOptions{BaseURL: srv.URL, Timeout: time.Second, RPS: 100}, testLogger())
	_, err := m.Resolve(context.Background(), "Jack Smith")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
