package window

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dugout-pulse/internal/model"
)

func TestFormatStatsHitter(t *testing.T) {
	line := model.Line{Batting: model.Batting{PA: 9, AB: 7, H: 3, Doubles: 1, HR: 1, BB: 1, HBP: 1, RBI: 4, K: 2, SB: 1}}
	data, err := json.Marshal(FormatStats(model.RoleHitter, line))
	require.NoError(t, err)
	assert.Equal(t,
		`{"pa":9,"ab":7,"h":3,"hr":1,"rbi":4,"bb":1,"k":2,"sb":1,"avg":".429","obp":".556","slg":"1.000","ops":"1.556"}`,
		string(data))
}

func TestFormatStatsPitcher(t *testing.T) {
	line := model.Line{Pitching: model.Pitching{Outs: 19, ER: 3, BB: 1, H: 5, K: 8}}
	stats := FormatStats(model.RolePitcher, line)

	ip, ok := stats.Get("ip")
	require.True(t, ok)
	assert.Equal(t, "6.1", ip.String())
	era, _ := stats.Get("era")
	assert.Equal(t, "4.26", era.String())
	whip, _ := stats.Get("whip")
	assert.Equal(t, "0.95", whip.String())
}

func TestMissingStatsRenderSentinel(t *testing.T) {
	data, err := json.Marshal(MissingStats(model.RolePitcher))
	require.NoError(t, err)
	assert.Equal(t, `{"ip":"--","k":"--","bb":"--","h":"--","er":"--","era":"--","whip":"--"}`, string(data))
}

func TestStatsReadBack(t *testing.T) {
	var stats Stats
	require.NoError(t, json.Unmarshal([]byte(`{"pa":12,"avg":".333","ops":"--"}`), &stats))
	require.Len(t, stats, 3)
	assert.Equal(t, "pa", stats[0].Key)
	assert.Equal(t, "12", stats[0].Cell.String())
	assert.Equal(t, ".333", stats[1].Cell.String())
	assert.True(t, stats[2].Cell.IsMissing())
}
