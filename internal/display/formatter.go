// Package display turns snapshots into frames for the LED matrix.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"BTCTicker/internal/model"
)

// Color is the frame accent, mirroring the matrix palette.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorWhite Color = "white"
	ColorGray  Color = "gray"
)

// Frame is one rendered view of a snapshot.
type Frame struct {
	Text  string
	Color Color
	Stale bool
}

// Format renders snap as a one-line ticker. Values older than ttl mark the
// frame stale; stale data is still shown.
func Format(symbol string, snap model.Snapshot, now time.Time, ttl time.Duration) Frame {
	if !snap.HasPrice() {
		return Frame{Text: symbol + " --", Color: ColorGray, Stale: true}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s $%s", symbol, groupThousands(snap.Price.StringFixed(2))))
	for _, tf := range model.AllTimeframes {
		if v, ok := snap.Change(tf); ok {
			b.WriteString(fmt.Sprintf(" %s %s%%", tf, signed(v)))
		}
	}

	f := Frame{Color: ColorWhite}
	if v, ok := snap.Change(model.TwentyFourHour); ok {
		f.Color = ColorGreen
		if v.IsNegative() {
			f.Color = ColorRed
		}
	}
	if !snap.IsFresh(model.SeriesPrice, now, ttl) {
		f.Stale = true
		b.WriteString(" (stale)")
	}
	f.Text = b.String()
	return f
}

func signed(v decimal.Decimal) string {
	s := v.StringFixed(2)
	if !v.IsNegative() {
		s = "+" + s
	}
	return s
}

// groupThousands inserts commas into the integer part of a fixed-point string.
func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
