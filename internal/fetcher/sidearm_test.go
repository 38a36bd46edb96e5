package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/model"
)

func TestSidearmFetchCumulative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"individual": map[string]any{
				"hitting": []map[string]any{
					{"name": "Doe, John", "gp": 20, "ab": 60, "h": 21, "2b": 4, "hr": 3, "bb": 9, "hbp": 2, "sf": 1},
				},
				"pitching": []map[string]any{
					{"name": "Roe, Rick", "app": 6, "ip": "22.1", "er": 7, "bb": 5, "h": 18, "k": 25},
					{"name": "Bad Arm", "app": 1, "ip": "3.7"},
				},
			},
		})
	}))
	defer srv.Close()

	s := NewSidearm(SidearmOptions{URLs: map[string]string{"state u": srv.URL}, Timeout: time.Second, RPS: 100}, testLogger())

	line, err := s.FetchCumulative(context.Background(), model.Player{Name: "John Doe", Team: "State U"})
	require.NoError(t, err)
	assert.Equal(t, 60, line.Batting.AB)
	assert.Equal(t, 72, line.Batting.PA, "PA derived from AB+BB+HBP+SF")

	line, err = s.FetchCumulative(context.Background(), model.Player{Name: "Rick Roe", Team: "State U", Role: model.RolePitcher})
	require.NoError(t, err)
	assert.Equal(t, 67, line.Pitching.Outs)

	line, err = s.FetchCumulative(context.Background(), model.Player{Name: "Bad Arm", Team: "State U", Role: model.RolePitcher})
	require.NoError(t, err)
	assert.Equal(t, 0, line.Pitching.Outs, "malformed innings count as zero outs")

	_, err = s.FetchCumulative(context.Background(), model.Player{Name: "Missing Man", Team: "State U"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = s.FetchCumulative(context.Background(), model.Player{Name: "John Doe", Team: "Other"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	doc := `{"players":[{"name":"Sam Hill","team":"Tech","batting":{"g":3,"ab":10,"h":4,"bb":2}},
	{"name":"Lou Arm","team":"Tech","pitching":{"g":2,"ip":"4.2","er":1}}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f := NewFeedFile(path, testLogger())

	line, err := f.FetchCumulative(context.Background(), model.Player{Name: "Sam Hill", Team: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, 4, line.Batting.H)
	assert.Equal(t, 12, line.Batting.PA)

	line, err = f.FetchCumulative(context.Background(), model.Player{Name: "Lou Arm", Team: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, 14, line.Pitching.Outs)
	assert.Equal(t, 2, line.Pitching.Games)

	_, err = f.FetchCumulative(context.Background(), model.Player{Name: "Sam Hill", Team: "Other"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = NewFeedFile(filepath.Join(t.TempDir(), "nope.json"), testLogger()).
		FetchCumulative(context.Background(), model.Player{Name: "Sam Hill", Team: "Tech"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Doe, John":        "john doe",
		"John  Doe":        "john doe",
		"J.T. Realmuto":    "jt realmuto",
		"Smith-Jones, Kai": "kai smith jones",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeName(in), in)
	}
}
