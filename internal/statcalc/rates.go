package statcalc

import (
	"github.com/shopspring/decimal"

	"dugout-pulse/internal/model"
)

// BattingRates is the slash line derived from a batting line.
type BattingRates struct {
	AVG decimal.Decimal
	OBP decimal.Decimal
	SLG decimal.Decimal
	OPS decimal.Decimal
}

// PitchingRates is derived from a pitching line.
type PitchingRates struct {
	ERA  decimal.Decimal
	WHIP decimal.Decimal
}

// TotalBases counts singles once, doubles twice, triples three times and home runs four times.
func TotalBases(b model.Batting) int {
	singles := b.H - b.Doubles - b.Triples - b.HR
	return singles + 2*b.Doubles + 3*b.Triples + 4*b.HR
}

// Batting derives AVG, OBP, SLG and OPS. Zero denominators yield zero.
func Batting(b model.Batting) BattingRates {
	avg := ratio(b.H, b.AB)
	obp := ratio(b.H+b.BB+b.HBP, b.PA)
	slg := ratio(TotalBases(b), b.AB)
	return BattingRates{
		AVG: avg,
		OBP: obp,
		SLG: slg,
		OPS: obp.Add(slg),
	}
}

// Pitching derives ERA and WHIP from outs so no innings rounding leaks in.
// ERA = ER*9/IP = ER*27/outs; WHIP = (BB+H)/IP = (BB+H)*3/outs.
func Pitching(p model.Pitching) PitchingRates {
	return PitchingRates{
		ERA:  ratio(p.ER*27, p.Outs),
		WHIP: ratio((p.BB+p.H)*3, p.Outs),
	}
}

func ratio(num, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).Div(decimal.NewFromInt(int64(den)))
}
