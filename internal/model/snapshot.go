package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a consistent point-in-time copy of the shared ticker state.
type Snapshot struct {
	Price       *decimal.Decimal              `json:"price,omitempty"`
	Changes     map[Timeframe]decimal.Decimal `json:"changes"`
	LastUpdated map[SeriesID]time.Time        `json:"last_updated"`
}

// HasPrice reports whether a price has been fetched at least once.
func (s Snapshot) HasPrice() bool {
	return s.Price != nil
}

// Change returns the percentage change for tf and whether it is known.
func (s Snapshot) Change(tf Timeframe) (decimal.Decimal, bool) {
	v, ok := s.Changes[tf]
	return v, ok
}

// IsFresh returns true if series was updated within ttl of now.
func (s Snapshot) IsFresh(series SeriesID, now time.Time, ttl time.Duration) bool {
	updated, ok := s.LastUpdated[series]
	if !ok || updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}

// Stale lists the series, in AllSeries order, not updated within ttl of now.
func (s Snapshot) Stale(now time.Time, ttl time.Duration) []SeriesID {
	var out []SeriesID
	for _, series := range AllSeries {
		if !s.IsFresh(series, now, ttl) {
			out = append(out, series)
		}
	}
	return out
}

// Clone returns a deep copy so callers never share maps with the store.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Changes:     make(map[Timeframe]decimal.Decimal, len(s.Changes)),
		LastUpdated: make(map[SeriesID]time.Time, len(s.LastUpdated)),
	}
	if s.Price != nil {
		p := *s.Price
		out.Price = &p
	}
	for k, v := range s.Changes {
		out.Changes[k] = v
	}
	for k, v := range s.LastUpdated {
		out.LastUpdated[k] = v
	}
	return out
}
