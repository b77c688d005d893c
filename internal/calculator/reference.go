package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"BTCTicker/internal/model"
)

// Field selects which price of a bar is used as the reference.
type Field string

const (
	FieldOpen  Field = "open"
	FieldClose Field = "close"
)

// ReferencePrice picks the reference price from chronologically ordered bars.
// A negative index counts from the end, so -1 is the latest bar.
func ReferencePrice(bars []model.OHLC, index int, field Field) (decimal.Decimal, error) {
	if len(bars) == 0 {
		return decimal.Zero, fmt.Errorf("no bars provided")
	}
	i := index
	if i < 0 {
		i = len(bars) + index
	}
	if i < 0 || i >= len(bars) {
		return decimal.Zero, fmt.Errorf("bar index %d out of range (have %d bars)", index, len(bars))
	}
	bar := bars[i]
	switch field {
	case FieldOpen:
		return bar.Open, nil
	case FieldClose:
		return bar.Close, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown bar field %q", field)
	}
}
