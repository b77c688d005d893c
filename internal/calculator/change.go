package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentChange returns (current - reference) / reference * 100, rounded to
// two decimal places.
func PercentChange(current, reference decimal.Decimal) (decimal.Decimal, error) {
	if reference.IsZero() {
		return decimal.Zero, errors.New("reference price is zero")
	}
	if reference.IsNegative() || current.IsNegative() {
		return decimal.Zero, errors.New("prices must be non-negative")
	}
	return RoundCents(current.Sub(reference).Div(reference).Mul(hundred)), nil
}

// RoundCents rounds a value to the nearest cent.
func RoundCents(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
