package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"BTCTicker/internal/calculator"
	"BTCTicker/internal/collector"
	"BTCTicker/internal/model"
	"BTCTicker/internal/state"
)

// PriceJob refreshes the spot price and its 24h change.
type PriceJob struct {
	Collector *collector.Collector
	Store     *state.Store
	Clock     clock.Clock
}

func (j *PriceJob) Series() model.SeriesID { return model.SeriesPrice }

func (j *PriceJob) Refresh(ctx context.Context) error {
	q, err := j.Collector.FetchQuote(ctx)
	if err != nil {
		return err
	}
	if err := j.Store.WritePrice(q.Price, q.Change24h, j.Clock.Now()); err != nil {
		return fmt.Errorf("write price: %w", err)
	}
	log.Printf("[INFO] price refreshed: %s (24h %s%%)", q.Price.StringFixed(2), q.Change24h.StringFixed(2))
	return nil
}

// DeltaJob fetches candles and derives a percentage change of the current
// price against a historical bar. The current price is read and the change
// written inside one store critical section.
type DeltaJob struct {
	SeriesID  model.SeriesID
	Timeframe model.Timeframe
	Days      int
	Index     int
	Field     calculator.Field
	Collector *collector.Collector
	Store     *state.Store
	Clock     clock.Clock
}

func (j *DeltaJob) Series() model.SeriesID { return j.SeriesID }

func (j *DeltaJob) Refresh(ctx context.Context) error {
	bars, err := j.Collector.FetchBars(ctx, j.Days)
	if err != nil {
		return err
	}
	ref, err := calculator.ReferencePrice(bars, j.Index, j.Field)
	if err != nil {
		return &collector.DecodeError{What: "reference bar", Err: err}
	}
	change, err := j.Store.ApplyDelta(j.SeriesID, j.Timeframe, ref, j.Clock.Now(), percentChange)
	if err != nil {
		return fmt.Errorf("apply %s delta: %w", j.Timeframe, err)
	}
	log.Printf("[INFO] %s change refreshed: %s%% (reference %s)", j.Timeframe, change.StringFixed(2), ref.StringFixed(2))
	return nil
}

// percentChange reports an unusable reference value as a payload problem.
func percentChange(current, reference decimal.Decimal) (decimal.Decimal, error) {
	change, err := calculator.PercentChange(current, reference)
	if err != nil {
		return decimal.Zero, &collector.DecodeError{What: "reference price", Err: err}
	}
	return change, nil
}
