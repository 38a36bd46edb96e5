package baseline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/model"
)

func TestDeltaIsLiteral(t *testing.T) {
	current := model.Line{
		Batting:  model.Batting{AB: 50, H: 14, HR: 2},
		Pitching: model.Pitching{Outs: 30, ER: 4},
	}
	base := model.Line{
		Batting:  model.Batting{AB: 40, H: 15, HR: 2},
		Pitching: model.Pitching{Outs: 21, ER: 5},
	}

	d := Delta(current, base)
	assert.Equal(t, 10, d.Batting.AB)
	assert.Equal(t, -1, d.Batting.H, "stat corrections may go negative")
	assert.Equal(t, 0, d.Batting.HR)
	assert.Equal(t, 9, d.Pitching.Outs)
	assert.Equal(t, -1, d.Pitching.ER)
}

func TestLookupMissingAndStale(t *testing.T) {
	s := OpenFile(filepath.Join(t.TempDir(), "b.json"), zerolog.Nop(), fixedClock("2024-04-30"))
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "A|T", day("2024-04-01"), hits(4)))

	_, err := Lookup(ctx, s, "A|T", day("2024-03-31"), 3)
	assert.ErrorIs(t, err, ErrNoBaseline)

	snap, err := Lookup(ctx, s, "A|T", day("2024-04-04"), 3)
	require.NoError(t, err)
	assert.Equal(t, day("2024-04-01"), snap.Date)

	_, err = Lookup(ctx, s, "A|T", day("2024-04-05"), 3)
	assert.ErrorIs(t, err, ErrStaleBaseline)

	_, err = Lookup(ctx, s, "A|T", day("2024-04-23"), 0)
	assert.NoError(t, err, "zero disables the staleness check")
}

func TestBaselineDaysAgo(t *testing.T) {
	s := OpenFile(filepath.Join(t.TempDir(), "b.json"), zerolog.Nop(), fixedClock("2024-01-10"))
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-01"), hits(1)))
	require.NoError(t, s.Store(ctx, "A|T", day("2024-01-04"), hits(2)))

	snap, found, err := BaselineDaysAgo(ctx, s, "A|T", day("2024-01-10"), 6)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, day("2024-01-04"), snap.Date)

	snap, found, err = BaselineDaysAgo(ctx, s, "A|T", day("2024-01-10"), 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, day("2024-01-01"), snap.Date)
}
