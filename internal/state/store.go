// Package state holds the ticker values shared between refresh workers and the
// render loop.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"BTCTicker/internal/model"
)

var (
	// ErrLockTimeout means the store lock could not be taken within the
	// configured wait. It indicates a deadlock and must not be ignored.
	ErrLockTimeout = errors.New("state: lock wait exceeded")
	// ErrNoPrice is returned by ApplyDelta before the first price arrives.
	ErrNoPrice = errors.New("state: no price yet")
)

// DefaultLockWait bounds how long a writer waits for the lock.
const DefaultLockWait = 2 * time.Second

// Store is the mutually exclusive cell holding the latest fetched values.
// Every mutation and every snapshot happens under one lock acquisition.
type Store struct {
	lock     chan struct{}
	lockWait time.Duration

	price       *decimal.Decimal
	changes     map[model.Timeframe]decimal.Decimal
	lastUpdated map[model.SeriesID]time.Time
}

// NewStore creates an empty store. lockWait <= 0 selects DefaultLockWait.
func NewStore(lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Store{
		lock:        make(chan struct{}, 1),
		lockWait:    lockWait,
		changes:     make(map[model.Timeframe]decimal.Decimal),
		lastUpdated: make(map[model.SeriesID]time.Time),
	}
}

func (s *Store) acquire() error {
	select {
	case s.lock <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(s.lockWait)
	defer t.Stop()
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("%w (%s)", ErrLockTimeout, s.lockWait)
	}
}

func (s *Store) release() {
	<-s.lock
}

// Snapshot returns a copied, internally consistent view of every field.
func (s *Store) Snapshot() model.Snapshot {
	s.lock <- struct{}{}
	defer s.release()

	view := model.Snapshot{
		Price:       s.price,
		Changes:     s.changes,
		LastUpdated: s.lastUpdated,
	}
	return view.Clone()
}

// WritePrice stores the spot price and its 24h change for the price series.
func (s *Store) WritePrice(price, change24h decimal.Decimal, at time.Time) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	p := price
	s.price = &p
	s.changes[model.TwentyFourHour] = change24h
	s.lastUpdated[model.SeriesPrice] = at
	return nil
}

// ApplyDelta reads the current price and writes the percentage change against
// reference in the same critical section, so the derived value is never older
// than the lock hold time.
func (s *Store) ApplyDelta(series model.SeriesID, tf model.Timeframe, reference decimal.Decimal, at time.Time,
	compute func(current, reference decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if err := s.acquire(); err != nil {
		return decimal.Zero, err
	}
	defer s.release()

	if s.price == nil {
		return decimal.Zero, ErrNoPrice
	}
	change, err := compute(*s.price, reference)
	if err != nil {
		return decimal.Zero, err
	}
	s.changes[tf] = change
	s.lastUpdated[series] = at
	return change, nil
}
