package window

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

// Sentinel replaces every numeric cell when a window cannot be shown.
const Sentinel = "--"

type cellKind uint8

const (
	cellMissing cellKind = iota
	cellCount
	cellText
)

// Cell is one rendered stat: an integer count, fixed-precision text, or the sentinel.
type Cell struct {
	kind  cellKind
	count int
	text  string
}

// Count is an integer cell.
func Count(n int) Cell { return Cell{kind: cellCount, count: n} }

// Text is a pre-formatted cell such as ".312" or "4.1".
func Text(s string) Cell { return Cell{kind: cellText, text: s} }

// Missing is the sentinel cell.
func Missing() Cell { return Cell{} }

// IsMissing reports whether the cell renders as the sentinel.
func (c Cell) IsMissing() bool { return c.kind == cellMissing }

// String renders the cell for tables and CSV.
func (c Cell) String() string {
	switch c.kind {
	case cellCount:
		return fmt.Sprintf("%d", c.count)
	case cellText:
		return c.text
	default:
		return Sentinel
	}
}

// MarshalJSON emits counts as numbers and everything else as strings.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.kind == cellCount {
		return json.Marshal(c.count)
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts the forms MarshalJSON produces.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Count(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("stat cell: %w", err)
	}
	if s == Sentinel {
		*c = Missing()
		return nil
	}
	*c = Text(s)
	return nil
}

// Stat is a named cell.
type Stat struct {
	Key  string
	Cell Cell
}

// Stats keeps cells in display order and marshals as a JSON object.
type Stats []Stat

// Get returns the cell for key.
func (s Stats) Get(key string) (Cell, bool) {
	for _, st := range s {
		if st.Key == key {
			return st.Cell, true
		}
	}
	return Cell{}, false
}

// MarshalJSON writes an object whose keys follow slice order.
func (s Stats) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, st := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(st.Key)
		if err != nil {
			return nil, err
		}
		val, err := st.Cell.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object back in its written key order.
func (s *Stats) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("stats: expected object")
	}
	out := Stats{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("stats: expected key")
		}
		var cell Cell
		if err := dec.Decode(&cell); err != nil {
			return fmt.Errorf("stats %s: %w", key, err)
		}
		out = append(out, Stat{Key: key, Cell: cell})
	}
	*s = out
	return nil
}

// HitterKeys and PitcherKeys are the feed's stat columns per role.
var (
	HitterKeys  = []string{"pa", "ab", "h", "hr", "rbi", "bb", "k", "sb", "avg", "obp", "slg", "ops"}
	PitcherKeys = []string{"ip", "k", "bb", "h", "er", "era", "whip"}
)

// KeysFor returns the stat columns for a role.
func KeysFor(role model.Role) []string {
	if role.Pitches() {
		return PitcherKeys
	}
	return HitterKeys
}

// MissingStats is the all-sentinel row for a role.
func MissingStats(role model.Role) Stats {
	keys := KeysFor(role)
	out := make(Stats, len(keys))
	for i, k := range keys {
		out[i] = Stat{Key: k, Cell: Missing()}
	}
	return out
}

// FormatStats renders a counting line for a role.
func FormatStats(role model.Role, line model.Line) Stats {
	if role.Pitches() {
		p := line.Pitching
		r := statcalc.Pitching(p)
		return Stats{
			{"ip", Text(statcalc.InningsFromOuts(p.Outs))},
			{"k", Count(p.K)},
			{"bb", Count(p.BB)},
			{"h", Count(p.H)},
			{"er", Count(p.ER)},
			{"era", Text(statcalc.FormatRatio(r.ERA))},
			{"whip", Text(statcalc.FormatRatio(r.WHIP))},
		}
	}

	b := line.Batting
	r := statcalc.Batting(b)
	return Stats{
		{"pa", Count(b.PA)},
		{"ab", Count(b.AB)},
		{"h", Count(b.H)},
		{"hr", Count(b.HR)},
		{"rbi", Count(b.RBI)},
		{"bb", Count(b.BB)},
		{"k", Count(b.K)},
		{"sb", Count(b.SB)},
		{"avg", Text(statcalc.FormatAverage(r.AVG))},
		{"obp", Text(statcalc.FormatAverage(r.OBP))},
		{"slg", Text(statcalc.FormatAverage(r.SLG))},
		{"ops", Text(statcalc.FormatAverage(r.OPS))},
	}
}
