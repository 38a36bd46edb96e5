package alerting

import (
	"fmt"
	"strings"
	"time"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

// ApproxTimesOnBase estimates how often a hitter reached base as hits plus
// walks, or hits alone when no walks were recorded. HBP and errors are not
// counted, so this is an approximation and only used for chat callouts.
func ApproxTimesOnBase(b model.Batting) int {
	if b.BB <= 0 {
		return b.H
	}
	return b.H + b.BB
}

// Digest collects one run's callouts. Each player and kind is reported at
// most once per digest, so build a new one per run.
type Digest struct {
	day  time.Time
	sent map[string]bool
	hot  []string
	cold []string
}

// NewDigest starts an empty digest for the run day.
func NewDigest(day time.Time) *Digest {
	return &Digest{day: day, sent: make(map[string]bool)}
}

// AddFeed picks the 7-day Hot and Cold client results out of a feed.
func (d *Digest) AddFeed(feed *window.Feed) {
	for _, r := range feed.Windows[window.Week] {
		if !r.IsClient || r.Status != window.StatusOK {
			continue
		}
		switch r.Tier {
		case window.TierHot:
			d.add("hot", r, &d.hot)
		case window.TierCold:
			d.add("cold", r, &d.cold)
		}
	}
}

func (d *Digest) add(kind string, r window.Result, into *[]string) {
	key := r.PlayerName + "|" + r.Team + ":" + kind
	if d.sent[key] {
		return
	}
	d.sent[key] = true
	*into = append(*into, renderLine(r))
}

// Empty reports whether there is nothing to send.
func (d *Digest) Empty() bool {
	return len(d.hot) == 0 && len(d.cold) == 0
}

// Message renders the digest.
func (d *Digest) Message() Message {
	var b strings.Builder
	fmt.Fprintf(&b, "*Dugout Pulse: 7-day movers for %s*\n", model.FormatDay(d.day))
	if len(d.hot) > 0 {
		b.WriteString(window.TierHot.Label() + "\n")
		for _, line := range d.hot {
			b.WriteString(line + "\n")
		}
	}
	if len(d.cold) > 0 {
		b.WriteString(window.TierCold.Label() + "\n")
		for _, line := range d.cold {
			b.WriteString(line + "\n")
		}
	}
	return Message{Text: strings.TrimRight(b.String(), "\n")}
}

func renderLine(r window.Result) string {
	cell := func(key string) string {
		c, _ := r.Stats.Get(key)
		return c.String()
	}

	tier := "T?"
	if r.Tags.RosterPriority >= 1 && r.Tags.RosterPriority <= 4 {
		tier = fmt.Sprintf("T%d", r.Tags.RosterPriority)
	}

	head := fmt.Sprintf("• *%s* (%s, %s)", r.PlayerName, tier, r.Team)
	if r.Role.Pitches() {
		return fmt.Sprintf("%s %s IP, %s ERA, %s WHIP, %s K", head, cell("ip"), cell("era"), cell("whip"), cell("k"))
	}
	return fmt.Sprintf("%s %s/%s/%s in %d G, reached base ~%d times",
		head, cell("avg"), cell("obp"), cell("slg"), r.GamesPlayed, ApproxTimesOnBase(r.Line.Batting))
}
