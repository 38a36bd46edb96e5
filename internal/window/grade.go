package window

import "github.com/shopspring/decimal"

// Tier is a window grade. Lower values are better.
type Tier int

const (
	TierHot Tier = iota
	TierSolid
	TierQuiet
	TierCold
	// TierInsufficient overrides grading when the sample gate fails or no
	// line could be built.
	TierInsufficient
)

var (
	opsHot   = decimal.RequireFromString("1.000")
	opsSolid = decimal.RequireFromString("0.750")
	opsQuiet = decimal.RequireFromString("0.550")

	eraHot   = decimal.RequireFromString("2.00")
	eraSolid = decimal.RequireFromString("3.50")
	eraQuiet = decimal.RequireFromString("5.00")
)

// GradeHitter grades by OPS. A value on a threshold takes the better tier.
func GradeHitter(ops decimal.Decimal) Tier {
	switch {
	case ops.GreaterThanOrEqual(opsHot):
		return TierHot
	case ops.GreaterThanOrEqual(opsSolid):
		return TierSolid
	case ops.GreaterThanOrEqual(opsQuiet):
		return TierQuiet
	default:
		return TierCold
	}
}

// GradePitcher grades by ERA, where lower is better.
func GradePitcher(era decimal.Decimal) Tier {
	switch {
	case era.LessThanOrEqual(eraHot):
		return TierHot
	case era.LessThanOrEqual(eraSolid):
		return TierSolid
	case era.LessThanOrEqual(eraQuiet):
		return TierQuiet
	default:
		return TierCold
	}
}

// Label is the dashboard text for the tier.
func (t Tier) Label() string {
	switch t {
	case TierHot:
		return "🔥 Hot"
	case TierSolid:
		return "✅ Solid"
	case TierQuiet:
		return "😐 Quiet"
	case TierCold:
		return "🥶 Cold"
	default:
		return "— Insufficient"
	}
}

// Class is the CSS class dashboards attach to the tier.
func (t Tier) Class() string {
	switch t {
	case TierHot:
		return "grade-hot"
	case TierSolid:
		return "grade-solid"
	case TierQuiet:
		return "grade-quiet"
	case TierCold:
		return "grade-cold"
	default:
		return "grade-insufficient"
	}
}

// TierFromLabel reverses Label for feeds read back from disk.
func TierFromLabel(label string) Tier {
	for _, t := range []Tier{TierHot, TierSolid, TierQuiet, TierCold} {
		if t.Label() == label {
			return t
		}
	}
	return TierInsufficient
}
