package budget

import (
	"github.com/shopspring/decimal"
	"github.com/simonvc/ledgerbook/internal/ledger"
)

// Classify grades actual spend against the limits: red strictly above the
// hard limit, star at or below an enabled soft limit, green otherwise.
// Red is decided first, so a soft limit above the hard limit can never
// turn overspend into a star.
func Classify(actual, hardLimit decimal.Decimal, softLimit decimal.NullDecimal) ledger.Indicator {
	if actual.GreaterThan(hardLimit) {
		return ledger.IndicatorRed
	}
	if softLimit.Valid && actual.LessThanOrEqual(softLimit.Decimal) {
		return ledger.IndicatorStar
	}
	return ledger.IndicatorGreen
}

// UsagePercent is actual as a percentage of the hard limit, rounded to two
// places. A zero limit yields zero.
func UsagePercent(actual, hardLimit decimal.Decimal) decimal.Decimal {
	if hardLimit.IsZero() {
		return decimal.Zero
	}
	return actual.Mul(decimal.NewFromInt(100)).DivRound(hardLimit, 2)
}
