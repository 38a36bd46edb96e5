package statcalc

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAverage renders a rate in box-score style: ".429", "1.057", "-.125".
func FormatAverage(d decimal.Decimal) string {
	s := d.StringFixed(3)
	switch {
	case strings.HasPrefix(s, "0."):
		return s[1:]
	case strings.HasPrefix(s, "-0."):
		if s == "-0.000" {
			return ".000"
		}
		return "-" + s[2:]
	}
	return s
}

// FormatRatio renders ERA/WHIP style values with two decimals: "3.38".
func FormatRatio(d decimal.Decimal) string {
	return d.StringFixed(2)
}
