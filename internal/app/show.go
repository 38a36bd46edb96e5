package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	FeedSelector
	// Runs lists recent archived runs instead of a feed.
	Runs  bool
	Limit int
}

// Show prints a window feed, or recent runs, as a table.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	if opts.Runs {
		return a.showRuns(ctx, w, opts.Limit)
	}

	results, err := a.loadResults(ctx, opts.FeedSelector)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no results found")
		return nil
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPlayer\tTeam\tLevel\tGrade\tStatus\tG\tLine")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			i+1,
			sanitizeInline(r.PlayerName),
			sanitizeInline(r.Team),
			r.Level,
			r.Grade,
			r.Status,
			r.GamesPlayed,
			slashLine(r),
		)
	}
	return tw.Flush()
}

func (a *App) showRuns(ctx context.Context, w io.Writer, limit int) error {
	b, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	if limit <= 0 {
		limit = 20
	}
	runs, err := b.archive.ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs archived")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Run\tDate\tTrigger\tPlayers\tInsufficient\tUnavailable\tDuration")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.RunID,
			model.FormatDay(run.RunDate),
			run.Trigger,
			run.Players,
			run.Insufficient,
			run.Unavailable,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

// slashLine is the compact summary shown per row: AVG/OBP/SLG for hitters,
// IP and ERA/WHIP for pitchers.
func slashLine(r window.Result) string {
	get := func(key string) string {
		c, _ := r.Stats.Get(key)
		return c.String()
	}
	if isPitcherRow(r) {
		return fmt.Sprintf("%s IP, %s ERA, %s WHIP", get("ip"), get("era"), get("whip"))
	}
	return fmt.Sprintf("%s/%s/%s, %s HR", get("avg"), get("obp"), get("slg"), get("hr"))
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
