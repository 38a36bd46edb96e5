// Package output writes and reads the per-window JSON feeds the dashboard consumes.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/atomicfile"
	"dugout-pulse/internal/window"
)

// ErrNoFeed means a window's feed file has not been written yet.
var ErrNoFeed = errors.New("output: feed not written")

// FileName returns the feed file for a window, e.g. window_7d.json.
func FileName(id window.ID) string {
	return "window_" + string(id) + ".json"
}

// Writer persists feeds into one directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter builds a writer rooted at dir.
func NewWriter(dir string, logger zerolog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger.With().Str("component", "output_writer").Logger()}
}

// Dir is the directory feeds are written to.
func (w *Writer) Dir() string { return w.dir }

// Write replaces every window's file. Each file is swapped in atomically;
// a failure leaves earlier windows written and later ones untouched.
func (w *Writer) Write(feed *window.Feed) error {
	for _, id := range window.All {
		results, ok := feed.Windows[id]
		if !ok {
			continue
		}
		if results == nil {
			results = []window.Result{}
		}

		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s feed: %w", id, err)
		}
		path := filepath.Join(w.dir, FileName(id))
		if err := atomicfile.Write(path, data); err != nil {
			return fmt.Errorf("write %s feed: %w", id, err)
		}
		w.logger.Info().Str("window", string(id)).Str("path", path).Int("records", len(results)).Msg("feed written")
	}
	return nil
}

// Read loads a window's feed back from dir.
func Read(dir string, id window.ID) ([]window.Result, error) {
	path := filepath.Join(dir, FileName(id))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoFeed, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var results []window.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", path, err)
	}
	for i := range results {
		results[i].Tier = window.TierFromLabel(results[i].Grade)
	}
	return results, nil
}
