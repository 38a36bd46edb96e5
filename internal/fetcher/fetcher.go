package fetcher

import (
	"context"
	"errors"
	"time"

	"dugout-pulse/internal/model"
)

var (
	// ErrPlayerNotFound indicates the source has no player matching the identity.
	ErrPlayerNotFound = errors.New("fetcher: player not found")
	// ErrUnavailable indicates the source could not produce data (network, parse, missing config).
	ErrUnavailable = errors.New("fetcher: source unavailable")
)

// StatGroup selects which game log a player is read from.
type StatGroup string

const (
	GroupHitting  StatGroup = "hitting"
	GroupPitching StatGroup = "pitching"
)

// GroupFor returns the log group a role is graded on.
func GroupFor(role model.Role) StatGroup {
	if role.Pitches() {
		return GroupPitching
	}
	return GroupHitting
}

// GameRecord is one game from a per-game log. Innings pitched are kept in
// their source notation so the caller converts them to outs exactly once.
type GameRecord struct {
	Date           time.Time
	Batting        model.Batting
	Pitching       model.Pitching
	InningsPitched string
}

// GameLogSource exposes per-game logs (Pro level).
type GameLogSource interface {
	Resolve(ctx context.Context, name string) (string, error)
	GameLog(ctx context.Context, id string, group StatGroup, from, to time.Time) ([]GameRecord, error)
}

// CumulativeSource exposes season-to-date totals as of today (NCAA level).
type CumulativeSource interface {
	Name() string
	FetchCumulative(ctx context.Context, player model.Player) (model.Line, error)
}
