// Package window aggregates each tracked player's stats over the 7-day,
// 30-day and season windows, grades the result and builds feed records.
package window

import (
	"time"

	"dugout-pulse/internal/model"
)

// ID names a window in the feed.
type ID string

const (
	Week   ID = "7d"
	Month  ID = "30d"
	Season ID = "season"
)

// All lists the windows in output order.
var All = []ID{Week, Month, Season}

// Span is a window resolved to inclusive calendar days.
type Span struct {
	ID   ID
	From time.Time
	To   time.Time
}

// Spans resolves every window for today.
func Spans(today, seasonStart time.Time) []Span {
	today = model.Day(today)
	return []Span{
		{ID: Week, From: model.AddDays(today, -7), To: today},
		{ID: Month, From: model.AddDays(today, -30), To: today},
		{ID: Season, From: model.Day(seasonStart), To: today},
	}
}

// DefaultSeasonStart is Feb 1 of today's year, or of the previous year
// before Feb 1.
func DefaultSeasonStart(today time.Time) time.Time {
	year := today.Year()
	if today.Month() < time.February {
		year--
	}
	return time.Date(year, time.February, 1, 0, 0, 0, 0, time.UTC)
}

// Gate is the minimum sample a window needs before it is graded.
type Gate struct {
	MinPA   int
	MinOuts int
}

// Passes reports whether the line meets the gate for the role.
func (g Gate) Passes(role model.Role, line model.Line) bool {
	if role.Pitches() {
		return line.Pitching.Outs >= g.MinOuts
	}
	return line.Batting.PA >= g.MinPA
}

// DefaultGates are used for windows missing from Options.Gates.
var DefaultGates = map[ID]Gate{
	Week:   {MinPA: 5, MinOuts: 6},
	Month:  {MinPA: 20, MinOuts: 18},
	Season: {MinPA: 30, MinOuts: 30},
}
