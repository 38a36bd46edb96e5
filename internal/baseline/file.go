package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/atomicfile"
	"dugout-pulse/internal/model"
)

// FileStore keeps every snapshot in one indented JSON document that is read
// once on open and rewritten whole on every Store call.
type FileStore struct {
	path   string
	now    func() time.Time
	loc    *time.Location
	logger zerolog.Logger
	broken error

	mu   sync.Mutex
	docs map[string]*playerSeries
}

type playerSeries struct {
	Snapshots []fileSnapshot `json:"snapshots"`
}

type fileSnapshot struct {
	Date       string     `json:"date"`
	Cumulative model.Line `json:"cumulative"`
}

// FileOption customises a FileStore.
type FileOption func(*FileStore)

// WithClock overrides the clock used for retention pruning.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// WithLocation sets the zone that decides which calendar day the clock is on.
func WithLocation(loc *time.Location) FileOption {
	return func(s *FileStore) { s.loc = loc }
}

// OpenFile loads the document at path. A missing file starts an empty store.
// A file that cannot be read or decoded leaves the store disabled: it is
// logged once, never overwritten, and every call returns ErrUnreadable.
func OpenFile(path string, logger zerolog.Logger, opts ...FileOption) *FileStore {
	s := &FileStore{
		path:   path,
		now:    time.Now,
		logger: logger.With().Str("component", "baseline_file").Logger(),
		docs:   make(map[string]*playerSeries),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info().Str("path", path).Msg("no snapshot file yet, starting empty")
		return s
	case err != nil:
		return s.disable(fmt.Errorf("read snapshot file %s: %w", path, err))
	}
	if len(data) == 0 {
		return s
	}
	if err := json.Unmarshal(data, &s.docs); err != nil {
		return s.disable(fmt.Errorf("decode snapshot file %s: %w", path, err))
	}
	for key, series := range s.docs {
		if series == nil {
			delete(s.docs, key)
		}
	}
	s.logger.Debug().Int("players", len(s.docs)).Msg("snapshot file loaded")
	return s
}

func (s *FileStore) disable(err error) *FileStore {
	s.broken = fmt.Errorf("%w: %v", ErrUnreadable, err)
	s.docs = make(map[string]*playerSeries)
	s.logger.Error().Err(err).Str("path", s.path).
		Msg("snapshot file unusable; baseline windows stay unavailable until it is repaired")
	return s
}

// Store replaces any snapshot for the same day, prunes expired entries and
// persists the whole document before returning. Memory only changes once the
// file has been replaced.
func (s *FileStore) Store(ctx context.Context, key string, date time.Time, line model.Line) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.broken != nil {
		return s.broken
	}
	day := model.FormatDay(model.Day(date))
	cutoff := model.FormatDay(PruneBefore(model.DayIn(s.now(), s.loc)))

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*playerSeries, len(s.docs)+1)
	for k, series := range s.docs {
		next[k] = &playerSeries{Snapshots: append([]fileSnapshot(nil), series.Snapshots...)}
	}

	series := next[key]
	if series == nil {
		series = &playerSeries{}
		next[key] = series
	}
	kept := series.Snapshots[:0]
	for _, snap := range series.Snapshots {
		if snap.Date != day {
			kept = append(kept, snap)
		}
	}
	series.Snapshots = append(kept, fileSnapshot{Date: day, Cumulative: line})

	prune(next, cutoff)
	if err := s.persist(next); err != nil {
		return err
	}
	s.docs = next
	return nil
}

// Baseline returns the latest snapshot dated on or before target.
func (s *FileStore) Baseline(_ context.Context, key string, target time.Time) (Snapshot, bool, error) {
	if s.broken != nil {
		return Snapshot{}, false, s.broken
	}
	want := model.FormatDay(model.Day(target))

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.docs[key]
	if series == nil {
		return Snapshot{}, false, nil
	}

	var best *fileSnapshot
	for i := range series.Snapshots {
		snap := &series.Snapshots[i]
		// YYYY-MM-DD orders lexically
		if snap.Date > want {
			continue
		}
		if best == nil || snap.Date > best.Date {
			best = snap
		}
	}
	if best == nil {
		return Snapshot{}, false, nil
	}

	day, err := model.ParseDay(best.Date)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot for %s: %w", key, err)
	}
	return Snapshot{Key: key, Date: day, Line: best.Cumulative}, true, nil
}

// Snapshots lists every stored snapshot for key in date order.
func (s *FileStore) Snapshots(key string) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.docs[key]
	if series == nil {
		return nil
	}
	out := make([]Snapshot, 0, len(series.Snapshots))
	for _, snap := range series.Snapshots {
		day, err := model.ParseDay(snap.Date)
		if err != nil {
			continue
		}
		out = append(out, Snapshot{Key: key, Date: day, Line: snap.Cumulative})
	}
	return out
}

func prune(docs map[string]*playerSeries, cutoff string) {
	for key, series := range docs {
		kept := series.Snapshots[:0]
		for _, snap := range series.Snapshots {
			if snap.Date >= cutoff {
				kept = append(kept, snap)
			}
		}
		if len(kept) == 0 {
			delete(docs, key)
			continue
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })
		series.Snapshots = kept
	}
}

func (s *FileStore) persist(docs map[string]*playerSeries) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshots: %w", err)
	}
	if err := atomicfile.Write(s.path, data); err != nil {
		return fmt.Errorf("persist snapshots: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
