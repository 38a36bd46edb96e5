package model

import (
	"fmt"
	"time"
)

// DayLayout is the wire format for calendar dates.
const DayLayout = "2006-01-02"

// Day truncates t to its calendar date, expressed as midnight UTC so that
// comparisons and arithmetic are free of DST effects.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayIn is Day evaluated on loc's calendar. A nil loc keeps t's own zone.
func DayIn(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return Day(t)
}

// AddDays shifts a calendar day by n days.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// FormatDay renders a calendar day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return day.Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(v string) (time.Time, error) {
	t, err := time.Parse(DayLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", v, err)
	}
	return t, nil
}
