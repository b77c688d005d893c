package model

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSnapshotStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Changes: map[Timeframe]decimal.Decimal{},
		LastUpdated: map[SeriesID]time.Time{
			SeriesPrice: now.Add(-10 * time.Second),
			SeriesDaily: now.Add(-10 * time.Minute),
		},
	}

	tests := []struct {
		name string
		ttl  time.Duration
		want []SeriesID
	}{
		{"short ttl", 5 * time.Second, []SeriesID{SeriesPrice, SeriesHourly, SeriesDaily}},
		{"price fresh", time.Minute, []SeriesID{SeriesHourly, SeriesDaily}},
		{"daily fresh", time.Hour, []SeriesID{SeriesHourly}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.Stale(now, tt.ttl); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotStaleAllFresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{LastUpdated: map[SeriesID]time.Time{}}
	for _, s := range AllSeries {
		snap.LastUpdated[s] = now
	}
	if got := snap.Stale(now, time.Second); len(got) != 0 {
		t.Errorf("Stale() = %v, want none", got)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	p := decimal.NewFromInt(100)
	snap := Snapshot{
		Price:       &p,
		Changes:     map[Timeframe]decimal.Decimal{OneHour: decimal.NewFromInt(1)},
		LastUpdated: map[SeriesID]time.Time{SeriesPrice: time.Unix(1, 0)},
	}
	c := snap.Clone()
	*c.Price = decimal.NewFromInt(5)
	c.Changes[OneHour] = decimal.NewFromInt(9)
	delete(c.LastUpdated, SeriesPrice)

	if !snap.Price.Equal(decimal.NewFromInt(100)) {
		t.Error("price shared with clone")
	}
	if !snap.Changes[OneHour].Equal(decimal.NewFromInt(1)) {
		t.Error("changes shared with clone")
	}
	if _, ok := snap.LastUpdated[SeriesPrice]; !ok {
		t.Error("timestamps shared with clone")
	}
}
