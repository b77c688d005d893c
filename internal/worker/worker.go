// Package worker runs the periodic refresh workers, one per data series.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"BTCTicker/internal/collector"
	"BTCTicker/internal/model"
	"BTCTicker/internal/recorder"
	"BTCTicker/internal/state"
)

// Job refreshes one series. It performs its own network I/O and writes the
// result into the shared store.
type Job interface {
	Series() model.SeriesID
	Refresh(ctx context.Context) error
}

// Gate reports whether network requests may start.
type Gate interface {
	Ready() bool
}

// Phase is the scheduling state of a worker.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRequesting:
		return "REQUESTING"
	default:
		return "UNKNOWN"
	}
}

// Status is a point-in-time view of one worker.
type Status struct {
	Series    model.SeriesID `json:"series"`
	Phase     string         `json:"phase"`
	Suspended bool           `json:"suspended"`
	Period    string         `json:"period"`
	LastStart time.Time      `json:"last_start"`
	Requests  int            `json:"requests"`
	Failures  int            `json:"failures"`
	LastError string         `json:"last_error,omitempty"`
}

// Options configures a Worker.
type Options struct {
	Period time.Duration
	// RequestTimeout bounds one Refresh call on top of the transport timeout.
	RequestTimeout time.Duration
	Clock          clock.Clock
	Gate           Gate
	Recorder       recorder.Recorder
}

// Worker is an independently scheduled periodic refresher for one series.
// Idle -> Requesting -> Idle, one request at a time, started at most once per
// period measured from the previous start. Failures are never retried early.
type Worker struct {
	job            Job
	period         time.Duration
	requestTimeout time.Duration
	clock          clock.Clock
	gate           Gate
	rec            recorder.Recorder
	wake           chan struct{}

	mu        sync.Mutex
	phase     Phase
	inFlight  bool
	suspended bool
	started   bool
	lastStart time.Time
	done      chan struct{}
	requests  int
	failures  int
	lastErr   error
}

// New creates a worker for job.
func New(job Job, opts Options) *Worker {
	if opts.Period <= 0 {
		opts.Period = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Worker{
		job:            job,
		period:         opts.Period,
		requestTimeout: opts.RequestTimeout,
		clock:          opts.Clock,
		gate:           opts.Gate,
		rec:            opts.Recorder,
		wake:           make(chan struct{}, 1),
	}
}

// Series returns the series this worker owns.
func (w *Worker) Series() model.SeriesID { return w.job.Series() }

// Run loops until ctx is cancelled. It returns a non-nil error only for
// fatal conditions (a store lock that could not be taken).
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[INFO] worker %s started (period %s)", w.Series(), w.period)
	for {
		if err := w.awaitTurn(ctx); err != nil {
			log.Printf("[INFO] worker %s stopped", w.Series())
			return nil
		}
		if err := w.execute(ctx); err != nil {
			return err
		}
	}
}

// Suspend stops the worker from starting new requests. A request already in
// flight is allowed to finish. Suspending twice is a no-op.
func (w *Worker) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suspended = true
}

// Resume lifts a suspension and wakes the worker.
func (w *Worker) Resume() {
	w.mu.Lock()
	w.suspended = false
	w.mu.Unlock()
	w.Wake()
}

// Wake asks the worker to re-evaluate its scheduling decision.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// InFlight returns a channel closed when the current request completes, or
// nil when the worker is idle.
func (w *Worker) InFlight() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.inFlight {
		return nil
	}
	return w.done
}

// Status returns the worker's scheduling state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Series:    w.job.Series(),
		Phase:     w.phase.String(),
		Suspended: w.suspended,
		Period:    w.period.String(),
		LastStart: w.lastStart,
		Requests:  w.requests,
		Failures:  w.failures,
	}
	if w.lastErr != nil {
		st.LastError = w.lastErr.Error()
	}
	return st
}

func (w *Worker) awaitTurn(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, wait := w.tryClaim()
		if claimed {
			return nil
		}

		var (
			timer  *clock.Timer
			timerC <-chan time.Time
		)
		if wait > 0 {
			timer = w.clock.Timer(wait)
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
		case <-w.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// tryClaim makes the scheduling decision and, if the worker may run, marks
// it in flight in the same critical section. A zero wait means "until woken".
func (w *Worker) tryClaim() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.suspended || w.inFlight {
		return false, 0
	}
	if w.gate != nil && !w.gate.Ready() {
		return false, w.period
	}
	now := w.clock.Now()
	if w.started {
		due := w.lastStart.Add(w.period)
		if now.Before(due) {
			return false, due.Sub(now)
		}
	}

	w.inFlight = true
	w.phase = PhaseRequesting
	w.started = true
	w.lastStart = now
	w.done = make(chan struct{})
	w.requests++
	return true, 0
}

func (w *Worker) execute(ctx context.Context) error {
	reqCtx := ctx
	if w.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, w.requestTimeout)
		defer cancel()
	}

	err := w.job.Refresh(reqCtx)

	w.mu.Lock()
	w.inFlight = false
	w.phase = PhaseIdle
	close(w.done)
	w.lastErr = err
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return w.report(err)
}

// report classifies a refresh failure. Only a store lock timeout is fatal.
func (w *Worker) report(err error) error {
	evt := recorder.Event{
		Time:    w.clock.Now(),
		Level:   recorder.LevelWarn,
		Source:  string(w.Series()),
		Message: err.Error(),
	}
	switch {
	case errors.Is(err, state.ErrLockTimeout):
		evt.Level = recorder.LevelFatal
		evt.Kind = recorder.KindFatal
		recorder.Report(w.rec, evt)
		return fmt.Errorf("worker %s: %w", w.Series(), err)
	case collector.IsNetworkError(err):
		evt.Kind = recorder.KindNetwork
	case collector.IsDecodeError(err):
		evt.Kind = recorder.KindDecode
	case errors.Is(err, state.ErrNoPrice):
		evt.Level = recorder.LevelInfo
		evt.Kind = recorder.KindTransition
		evt.Message = "skipped: no price yet"
	default:
		evt.Level = recorder.LevelError
		evt.Kind = recorder.KindRefresh
	}
	recorder.Report(w.rec, evt)
	return nil
}
