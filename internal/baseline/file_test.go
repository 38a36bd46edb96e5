package baseline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/model"
)

func day(s string) time.Time {
	t, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) FileOption {
	return WithClock(func() time.Time { return day(s).Add(15 * time.Hour) })
}

func hits(n int) model.Line {
	return model.Line{Batting: model.Batting{H: n, AB: n * 3}}
}

func TestSameDayStoreReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.json")
	s := OpenFile(path, zerolog.Nop(), fixedClock("2024-01-10"))
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-10"), hits(3)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-10").Add(5*time.Hour), hits(7)))

	snaps := s.Snapshots("A|T")
	require.Len(t, snaps, 1)
	assert.Equal(t, 7, snaps[0].Line.Batting.H)

	reopened := OpenFile(path, zerolog.Nop(), fixedClock("2024-01-10"))
	snaps = reopened.Snapshots("A|T")
	require.Len(t, snaps, 1)
	assert.Equal(t, 7, snaps[0].Line.Batting.H)
}

func TestBaselineLatestOnOrBeforeTarget(t *testing.T) {
	s := OpenFile(filepath.Join(t.TempDir(), "b.json"), zerolog.Nop(), fixedClock("2024-01-10"))
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-10"), hits(10)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-01"), hits(1)))

	snap, found, err := s.Baseline(ctx, "A|T", day("2024-01-05"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, day("2024-01-01"), snap.Date)
	assert.Equal(t, 1, snap.Line.Batting.H)

	snap, found, err = s.Baseline(ctx, "A|T", day("2024-01-10"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10, snap.Line.Batting.H, "a snapshot on the target day qualifies")

	_, found, err = s.Baseline(ctx, "A|T", day("2023-12-31"))
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Baseline(ctx, "B|T", day("2024-01-10"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorePrunesExpiredSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	s := OpenFile(path, zerolog.Nop(), fixedClock("2024-03-01"))
	ctx := context.Background()

	// 2024-01-16 is exactly 45 days before 2024-03-01
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-15"), hits(1)))
	require.NoError(t, s.Store(ctx, "Old|T", day("2024-01-02"), hits(1)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-16"), hits(2)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-03-01"), hits(3)))

	snaps := s.Snapshots("A|T")
	require.Len(t, snaps, 2)
	assert.Equal(t, day("2024-01-16"), snaps[0].Date)
	assert.Equal(t, day("2024-03-01"), snaps[1].Date)
	assert.Empty(t, s.Snapshots("Old|T"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotContains(t, doc, "Old|T")
}

func TestCorruptDocumentDisablesStoreWithoutOverwriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	ctx := context.Background()

	s := OpenFile(path, zerolog.Nop(), fixedClock("2024-01-10"))

	_, _, err := s.Baseline(ctx, "A|T", day("2024-01-10"))
	assert.ErrorIs(t, err, ErrUnreadable)
	_, err = Lookup(ctx, s, "A|T", day("2024-01-10"), 3)
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.ErrorIs(t, s.Store(ctx, "A|T", day("2024-01-10"), hits(1)), ErrUnreadable)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestFailedPersistLeavesMemoryUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	s := OpenFile(path, zerolog.Nop(), fixedClock("2024-03-01"))
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-20"), hits(1)))
	require.NoError(t, s.Store(ctx, "B|T", day("2024-02-28"), hits(2)))

	// a directory at the target makes the rename fail
	s.path = t.TempDir()
	s.now = func() time.Time { return day("2024-04-01") }
	require.Error(t, s.Store(ctx, "B|T", day("2024-04-01"), hits(9)))

	require.Len(t, s.Snapshots("A|T"), 1, "prune of a failed write is not kept")
	b := s.Snapshots("B|T")
	require.Len(t, b, 1)
	assert.Equal(t, 2, b[0].Line.Batting.H)

	s.path = path
	s.now = func() time.Time { return day("2024-03-01") }
	require.NoError(t, s.Store(ctx, "C|T", day("2024-03-01"), hits(3)))

	reopened := OpenFile(path, zerolog.Nop(), fixedClock("2024-03-01"))
	assert.Len(t, reopened.Snapshots("A|T"), 1)
	b = reopened.Snapshots("B|T")
	require.Len(t, b, 1)
	assert.Equal(t, day("2024-02-28"), b[0].Date)
}

func TestRetentionFollowsConfiguredZone(t *testing.T) {
	// 2024-03-01 03:00 UTC is still 2024-02-29 eight hours west
	west := time.FixedZone("UTC-8", -8*60*60)
	clock := WithClock(func() time.Time { return time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	s := OpenFile(filepath.Join(t.TempDir(), "b.json"), zerolog.Nop(), clock, WithLocation(west))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-15"), hits(1)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-02-29"), hits(2)))
	assert.Len(t, s.Snapshots("A|T"), 2, "2024-01-15 is 45 days before 2024-02-29")

	utc := OpenFile(filepath.Join(t.TempDir(), "b.json"), zerolog.Nop(), clock)
	require.NoError(t, utc.Store(ctx, "A|T", day("2024-01-15"), hits(1)))
	require.NoError(t, utc.Store(ctx, "A|T", day("2024-02-29"), hits(2)))
	assert.Len(t, utc.Snapshots("A|T"), 1)
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json")
	s := OpenFile(path, zerolog.Nop(), fixedClock("2024-01-10"))
	require.NoError(t, s.Store(context.Background(), "Jo Doe|State", day("2024-01-10"), hits(2)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]struct {
		Snapshots []struct {
			Date       string     `json:"date"`
			Cumulative model.Line `json:"cumulative"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc["Jo Doe|State"].Snapshots, 1)
	assert.Equal(t, "2024-01-10", doc["Jo Doe|State"].Snapshots[0].Date)
	assert.Equal(t, 2, doc["Jo Doe|State"].Snapshots[0].Cumulative.Batting.H)
}
