package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dugout-pulse/internal/window"
)

// Chartable metrics and the direction they sort in.
const (
	MetricOPS = "ops"
	MetricERA = "era"
)

// ExportOptions hold parameters for exporting a window feed.
type ExportOptions struct {
	FeedSelector
	Metric  string
	PNGPath string
	CSVPath string
	MaxBars int
}

// Export renders a window feed as CSV and/or a PNG bar chart of one metric.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Metric == "" {
		opts.Metric = MetricOPS
	}
	if opts.Metric != MetricOPS && opts.Metric != MetricERA {
		return fmt.Errorf("unknown metric %q; use ops or era", opts.Metric)
	}
	opts.MaxBars = a.Config.ResolveMaxBars(opts.MaxBars)

	results, err := a.loadResults(ctx, opts.FeedSelector)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		a.Logger.Info().Str("window", string(opts.Window)).Msg("no results found for export")
		return nil
	}

	if opts.CSVPath != "" {
		if err := writeResultsCSV(opts.CSVPath, results); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(results)).Msg("csv written")
	}

	if opts.PNGPath != "" {
		bars := topBars(results, opts.Metric, opts.MaxBars)
		if len(bars) == 0 {
			a.Logger.Warn().Str("metric", opts.Metric).Msg("no graded players to chart")
			return nil
		}
		title := fmt.Sprintf("%s leaders, %s window", opts.Metric, opts.Window)
		if err := writeBarsPNG(opts.PNGPath, title, bars); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("bars", len(bars)).Msg("chart written")
	}
	return nil
}

// csvColumns is every stat key across both roles, in feed order.
func csvColumns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, keys := range [][]string{window.HitterKeys, window.PitcherKeys} {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func writeResultsCSV(path string, results []window.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	cols := csvColumns()
	header := append([]string{"player_name", "team", "level", "is_client", "window", "window_grade", "data_status", "games_played"}, cols...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.PlayerName,
			r.Team,
			r.Level,
			strconv.FormatBool(r.IsClient),
			string(r.Window),
			r.Grade,
			string(r.Status),
			strconv.Itoa(r.GamesPlayed),
		}
		for _, k := range cols {
			cell, ok := r.Stats.Get(k)
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, cell.String())
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

type bar struct {
	label string
	value decimal.Decimal
}

// topBars ranks graded players on metric. OPS sorts high to low and ERA low
// to high; ties keep roster order.
func topBars(results []window.Result, metric string, max int) []bar {
	var bars []bar
	for _, r := range results {
		if r.Status != window.StatusOK {
			continue
		}
		if (metric == MetricERA) != isPitcherRow(r) {
			continue
		}
		cell, ok := r.Stats.Get(metric)
		if !ok || cell.IsMissing() {
			continue
		}
		v, err := decimal.NewFromString(cell.String())
		if err != nil {
			continue
		}
		bars = append(bars, bar{label: r.PlayerName, value: v})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if metric == MetricERA {
			return bars[i].value.LessThan(bars[j].value)
		}
		return bars[i].value.GreaterThan(bars[j].value)
	})
	if max > 0 && len(bars) > max {
		bars = bars[:max]
	}
	return bars
}

func writeBarsPNG(path, title string, bars []bar) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	values := make([]chart.Value, len(bars))
	for i, b := range bars {
		values[i] = chart.Value{Label: b.label, Value: b.value.InexactFloat64()}
	}

	const barWidth, barSpacing = 40, 12
	width := 160 + len(bars)*(barWidth+barSpacing)
	if width < 640 {
		width = 640
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     600,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Bottom: 40}},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.3f")
			},
		},
		Bars: values,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
