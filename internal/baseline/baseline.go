// Package baseline keeps dated snapshots of cumulative season lines so a
// window can be derived as today's total minus the total N days ago.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dugout-pulse/internal/model"
)

// RetentionDays is how long a snapshot is kept after its date.
const RetentionDays = 45

var (
	// ErrNoBaseline means no snapshot exists on or before the target date.
	ErrNoBaseline = errors.New("baseline: no snapshot on or before target")
	// ErrStaleBaseline means the closest snapshot is too old to stand in for the target.
	ErrStaleBaseline = errors.New("baseline: closest snapshot is stale")
	// ErrUnreadable means the backing store could not be loaded, so every read
	// and write is refused until it is repaired by hand.
	ErrUnreadable = errors.New("baseline: snapshot store unreadable")
)

// Snapshot is a player's cumulative line as of one calendar day.
type Snapshot struct {
	Key  string
	Date time.Time
	Line model.Line
}

// Store persists snapshots. Implementations keep at most one snapshot per key
// per day and drop snapshots older than RetentionDays on every write.
type Store interface {
	Store(ctx context.Context, key string, date time.Time, line model.Line) error
	Baseline(ctx context.Context, key string, target time.Time) (Snapshot, bool, error)
}

// BaselineDaysAgo returns the latest snapshot on or before today minus days.
func BaselineDaysAgo(ctx context.Context, s Store, key string, today time.Time, days int) (Snapshot, bool, error) {
	return s.Baseline(ctx, key, model.AddDays(today, -days))
}

// Lookup is Baseline with the missing and stale cases turned into errors.
// maxStaleDays bounds how far before target the snapshot may be; zero disables the check.
func Lookup(ctx context.Context, s Store, key string, target time.Time, maxStaleDays int) (Snapshot, error) {
	target = model.Day(target)
	snap, found, err := s.Baseline(ctx, key, target)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load baseline for %s: %w", key, err)
	}
	if !found {
		return Snapshot{}, fmt.Errorf("%w: %s as of %s", ErrNoBaseline, key, model.FormatDay(target))
	}
	if maxStaleDays > 0 && snap.Date.Before(model.AddDays(target, -maxStaleDays)) {
		return Snapshot{}, fmt.Errorf("%w: %s has %s for target %s", ErrStaleBaseline, key,
			model.FormatDay(snap.Date), model.FormatDay(target))
	}
	return snap, nil
}

// Delta subtracts the baseline from the current line field by field. Negative
// results from stat corrections are kept as is.
func Delta(current, base model.Line) model.Line {
	return current.Sub(base)
}

// PruneBefore returns the first day that survives retention relative to today.
func PruneBefore(today time.Time) time.Time {
	return model.AddDays(today, -RetentionDays)
}
