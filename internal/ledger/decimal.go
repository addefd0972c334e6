package ledger

import "github.com/shopspring/decimal"

// Persisted precision: 8 fractional digits for prices/quantities/amounts,
// 4 for percentages and ratios.
const (
	AmountPlaces  = 8
	PercentPlaces = 4
)

var decHundred = decimal.NewFromInt(100)

// RoundAmount normalizes a price/quantity/amount to stored precision.
func RoundAmount(v decimal.Decimal) decimal.Decimal {
	return v.Round(AmountPlaces)
}

// RoundPercent normalizes a percentage/ratio to stored precision.
func RoundPercent(v decimal.Decimal) decimal.Decimal {
	return v.Round(PercentPlaces)
}

// RatioPercent computes num/den*100 at percent precision, returning zero when
// the denominator is zero. Both views lean on this guard.
func RatioPercent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return RoundPercent(num.Div(den).Mul(decHundred))
}

// SignedPnL computes the realized profit of a closed exposure:
// (exit - entry) * quantity for longs, inverted for shorts, minus fees.
func SignedPnL(side PositionSide, entry, exit, quantity, fees decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(entry)
	if side == SideShort {
		diff = diff.Neg()
	}
	return RoundAmount(diff.Mul(quantity).Sub(fees))
}

// PnLPercent expresses realized PnL against the margin actually committed
// (entry * quantity / leverage).
func PnLPercent(pnl, entry, quantity decimal.Decimal, leverage int) decimal.Decimal {
	if leverage <= 0 {
		return decimal.Zero
	}
	committed := entry.Mul(quantity).Div(decimal.NewFromInt(int64(leverage)))
	return RatioPercent(pnl, committed)
}
