package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dugout-pulse/internal/output"
	"dugout-pulse/internal/storage"
	"dugout-pulse/internal/window"
)

// FeedSelector picks which results a read-only command works on: the live
// feed in the output directory, or an archived day when Date is set.
type FeedSelector struct {
	Window window.ID
	Date   *time.Time
}

func (a *App) loadResults(ctx context.Context, sel FeedSelector) ([]window.Result, error) {
	if sel.Date == nil {
		return output.Read(a.Config.Output.Dir, sel.Window)
	}

	b, err := a.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	defer b.close()

	records, err := b.archive.ListResults(ctx, string(sel.Window), *sel.Date)
	if err != nil {
		return nil, err
	}
	return fromRecords(records)
}

func fromRecords(records []storage.ResultRecord) ([]window.Result, error) {
	out := make([]window.Result, 0, len(records))
	for _, rec := range records {
		var stats window.Stats
		if err := json.Unmarshal(rec.Stats, &stats); err != nil {
			return nil, fmt.Errorf("decode archived stats for %s: %w", rec.PlayerName, err)
		}
		out = append(out, window.Result{
			PlayerName:  rec.PlayerName,
			Team:        rec.Team,
			Level:       rec.Level,
			IsClient:    rec.IsClient,
			Window:      window.ID(rec.Window),
			Grade:       rec.Grade,
			Status:      window.Status(rec.Status),
			Stats:       stats,
			GamesPlayed: rec.GamesPlayed,
			LastUpdated: rec.GeneratedAt.UTC().Format(time.RFC3339),
			Tier:        window.TierFromLabel(rec.Grade),
		})
	}
	return out, nil
}

// isPitcherRow tells the roles apart on rows read back from JSON, where
// the role itself is not serialised.
func isPitcherRow(r window.Result) bool {
	_, ok := r.Stats.Get("era")
	return ok
}
