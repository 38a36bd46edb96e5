package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

// FeedFile reads cumulative lines from a locally maintained JSON document.
// It is the manual fallback for schools without a supported site.
//
//	{"players": [{"name": "...", "team": "...", "batting": {...}, "pitching": {"ip": "12.1", ...}}]}
type FeedFile struct {
	path   string
	logger zerolog.Logger
}

// NewFeedFile constructs a reader for the document at path.
func NewFeedFile(path string, logger zerolog.Logger) *FeedFile {
	return &FeedFile{path: path, logger: logger.With().Str("component", "feed_fetcher").Logger()}
}

// Name identifies the source in logs.
func (f *FeedFile) Name() string { return "feed_file" }

// FetchCumulative re-reads the document so edits between runs are picked up.
func (f *FeedFile) FetchCumulative(ctx context.Context, player model.Player) (model.Line, error) {
	if f.path == "" {
		return model.Line{}, fmt.Errorf("%w: feed file not configured", ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return model.Line{}, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Line{}, fmt.Errorf("%w: feed file %s missing", ErrUnavailable, f.path)
		}
		return model.Line{}, fmt.Errorf("%w: read feed file: %v", ErrUnavailable, err)
	}

	var doc feedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Line{}, fmt.Errorf("%w: decode feed file: %v", ErrUnavailable, err)
	}

	want := normalizeName(player.Name)
	for _, entry := range doc.Players {
		if normalizeName(entry.Name) != want || entry.Team != player.Team {
			continue
		}
		pitching := entry.Pitching.Pitching
		if entry.Pitching.IP != "" {
			outs, err := statcalc.ParseOuts(entry.Pitching.IP)
			if err != nil {
				f.logger.Warn().Err(err).Str("player", player.Name).Str("field", "ip").Msg("malformed innings in feed file")
			}
			pitching.Outs = outs
		}
		return model.Line{Batting: entry.Batting.WithDerivedPA(), Pitching: pitching}, nil
	}
	return model.Line{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, player.Name)
}

type feedDocument struct {
	Players []feedEntry `json:"players"`
}

type feedEntry struct {
	Name     string        `json:"name"`
	Team     string        `json:"team"`
	Batting  model.Batting `json:"batting"`
	Pitching feedPitching  `json:"pitching"`
}

type feedPitching struct {
	model.Pitching
	IP string `json:"ip"`
}

var _ CumulativeSource = (*FeedFile)(nil)
