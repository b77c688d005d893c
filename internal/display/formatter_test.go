package display

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"BTCTicker/internal/model"
)

func snapshot(price string, at time.Time, changes map[model.Timeframe]string) model.Snapshot {
	p := decimal.RequireFromString(price)
	s := model.Snapshot{
		Price:       &p,
		Changes:     map[model.Timeframe]decimal.Decimal{},
		LastUpdated: map[model.SeriesID]time.Time{model.SeriesPrice: at},
	}
	for tf, v := range changes {
		s.Changes[tf] = decimal.RequireFromString(v)
	}
	return s
}

func TestFormat(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		name  string
		snap  model.Snapshot
		text  string
		color Color
		stale bool
	}{
		{
			name:  "no price",
			snap:  model.Snapshot{},
			text:  "BTC --",
			color: ColorGray,
			stale: true,
		},
		{
			name:  "rising",
			snap:  snapshot("65000", now, map[model.Timeframe]string{model.TwentyFourHour: "2.5", model.OneHour: "-0.1"}),
			text:  "BTC $65,000.00 24h +2.50% 1h -0.10%",
			color: ColorGreen,
		},
		{
			name:  "falling and stale",
			snap:  snapshot("1234567.891", now.Add(-time.Hour), map[model.Timeframe]string{model.TwentyFourHour: "-3"}),
			text:  "BTC $1,234,567.89 24h -3.00% (stale)",
			color: ColorRed,
			stale: true,
		},
		{
			name:  "price only",
			snap:  snapshot("999", now, nil),
			text:  "BTC $999.00",
			color: ColorWhite,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Format("BTC", tt.snap, now, 5*time.Minute)
			if f.Text != tt.text {
				t.Errorf("text = %q, want %q", f.Text, tt.text)
			}
			if f.Color != tt.color {
				t.Errorf("color = %s, want %s", f.Color, tt.color)
			}
			if f.Stale != tt.stale {
				t.Errorf("stale = %v, want %v", f.Stale, tt.stale)
			}
		})
	}
}

func TestLogRenderer_Last(t *testing.T) {
	r := NewLogRenderer("BTC", time.Minute)
	now := time.Unix(50, 0)
	if err := r.Render(snapshot("10", now, nil), now); err != nil {
		t.Fatal(err)
	}
	if got := r.Last().Text; got != "BTC $10.00" {
		t.Errorf("unexpected frame %q", got)
	}
}
