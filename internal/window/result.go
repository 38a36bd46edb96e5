package window

import (
	"time"

	"dugout-pulse/internal/model"
)

// Status tells feed consumers whether the stats can be trusted.
type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
	StatusUnavailable  Status = "unavailable"
)

// Tags carry roster metadata through to the feed.
type Tags struct {
	Position       string `json:"position"`
	DraftClass     string `json:"draft_class"`
	RosterPriority int    `json:"roster_priority"`
}

// Result is one player's feed record for one window. Build it once and
// treat it as read-only afterwards.
type Result struct {
	PlayerName  string `json:"player_name"`
	Team        string `json:"team"`
	Level       string `json:"level"`
	IsClient    bool   `json:"is_client"`
	Tags        Tags   `json:"tags"`
	Window      ID     `json:"window"`
	Grade       string `json:"window_grade"`
	Status      Status `json:"data_status"`
	Stats       Stats  `json:"stats"`
	GamesPlayed int    `json:"games_played"`
	LastUpdated string `json:"last_updated"`

	Role model.Role `json:"-"`
	Tier Tier       `json:"-"`
	Line model.Line `json:"-"`
}

func newResult(p model.Player, id ID, generated time.Time) Result {
	return Result{
		PlayerName: p.Name,
		Team:       p.Team,
		Level:      string(p.Level),
		IsClient:   p.IsClient,
		Tags: Tags{
			Position:       p.Position,
			DraftClass:     p.DraftClass,
			RosterPriority: p.RosterPriority,
		},
		Window:      id,
		LastUpdated: generated.UTC().Format(time.RFC3339),
		Role:        p.Role,
	}
}

func unavailable(p model.Player, id ID, generated time.Time) Result {
	r := newResult(p, id, generated)
	r.Status = StatusUnavailable
	r.Tier = TierInsufficient
	r.Grade = TierInsufficient.Label()
	r.Stats = MissingStats(p.Role)
	return r
}

// Feed is every window's results for one run, each in roster order.
type Feed struct {
	RunDate   time.Time
	Generated time.Time
	Windows   map[ID][]Result
}

// Counts tallies results by status across all windows.
func (f *Feed) Counts() map[Status]int {
	out := map[Status]int{}
	for _, results := range f.Windows {
		for _, r := range results {
			out[r.Status]++
		}
	}
	return out
}
