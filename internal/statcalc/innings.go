// Package statcalc derives baseball rate stats from counting stats.
//
// Innings pitched use a mixed notation where the digit after the point is a
// count of outs (x.1 is one out, x.2 is two), so all arithmetic is done on
// outs and only converted back for display.
package statcalc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedInnings marks an innings-pitched value outside the N or N.p (p in 0-2) notation.
var ErrMalformedInnings = errors.New("statcalc: malformed innings pitched")

// ParseOuts converts an innings-pitched string such as "6.1" to outs (19).
// Empty input counts as zero. Anything else that is not N or N.p with p in
// {0,1,2} returns 0 and ErrMalformedInnings.
func ParseOuts(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	innings, err := strconv.Atoi(whole)
	if err != nil || innings < 0 || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("%w: %q", ErrMalformedInnings, s)
	}
	if !hasFrac {
		return innings * 3, nil
	}

	switch frac {
	case "0":
		return innings * 3, nil
	case "1":
		return innings*3 + 1, nil
	case "2":
		return innings*3 + 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrMalformedInnings, s)
	}
}

// OutsFromInnings is ParseOuts with malformed input degraded to zero outs.
func OutsFromInnings(s string) int {
	outs, err := ParseOuts(s)
	if err != nil {
		return 0
	}
	return outs
}

// InningsFromOuts renders outs in innings-pitched notation: 19 -> "6.1", 18 -> "6".
func InningsFromOuts(outs int) string {
	if outs < 0 {
		return "-" + InningsFromOuts(-outs)
	}
	innings, partial := outs/3, outs%3
	if partial == 0 {
		return strconv.Itoa(innings)
	}
	return strconv.Itoa(innings) + "." + strconv.Itoa(partial)
}
