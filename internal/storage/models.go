package storage

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord summarises one aggregation pass.
type RunRecord struct {
	RunID        string
	RunDate      time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	Players      int
	Unavailable  int
	Insufficient int
	Trigger      string
}

// ResultRecord is one archived window result. Stats hold the rendered cells
// exactly as written to the feed.
type ResultRecord struct {
	RunID       string
	RunDate     time.Time
	Window      string
	Position    int
	PlayerName  string
	Team        string
	Level       string
	IsClient    bool
	Status      string
	Grade       string
	GamesPlayed int
	Stats       json.RawMessage
	GeneratedAt time.Time
}

// Archive keeps window results across runs so past feeds can be inspected
// and charted.
type Archive interface {
	ArchiveRun(ctx context.Context, run RunRecord, results []ResultRecord) error
	ListResults(ctx context.Context, window string, day time.Time) ([]ResultRecord, error)
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Locker guards a run against a concurrent run on another process.
type Locker interface {
	TryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
