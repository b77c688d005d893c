package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLC represents a single candlestick bar.
type OHLC struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// Quote is the decoded spot-price payload.
type Quote struct {
	Price     decimal.Decimal
	Change24h decimal.Decimal
}
