// Package money holds the whole-unit currency helpers shared by the pricing
// packages. All amounts are int64 RSD without sub-unit precision.
package money

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Currency is the display suffix for formatted amounts.
const Currency = "RSD"

// RoundHalfUp rounds d to a whole unit, ties going up.
func RoundHalfUp(d decimal.Decimal) int64 {
	// decimal.Round rounds half away from zero; amounts here are non-negative,
	// so that is half-up.
	return d.Round(0).IntPart()
}

// Percent returns pct percent of amount rounded half-up.
func Percent(amount, pct int64) int64 {
	return RoundHalfUp(decimal.NewFromInt(amount).Mul(decimal.NewFromInt(pct)).Div(hundred))
}

// Share returns amount/parts*n rounded half-up. It returns 0 when parts is
// not positive.
func Share(amount int64, parts, n int) int64 {
	if parts <= 0 {
		return 0
	}
	v := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(n))).
		Div(decimal.NewFromInt(int64(parts)))
	return RoundHalfUp(v)
}

// Gap returns how much is missing from value to reach target, never negative.
func Gap(target, value int64) int64 {
	if value >= target {
		return 0
	}
	return target - value
}

// NonNegative clamps v at zero.
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Format renders an amount the way the storefront shows it, e.g. "1.590 RSD".
// Negative amounts are shown as zero.
func Format(amount int64) string {
	s := strconv.FormatInt(NonNegative(amount), 10)
	if len(s) > 3 {
		out := make([]byte, 0, len(s)+len(s)/3)
		lead := len(s) % 3
		if lead > 0 {
			out = append(out, s[:lead]...)
		}
		for i := lead; i < len(s); i += 3 {
			if len(out) > 0 {
				out = append(out, '.')
			}
			out = append(out, s[i:i+3]...)
		}
		s = string(out)
	}
	return s + " " + Currency
}
