// Package lifecycle pauses the refresh workers around operations that must not
// run concurrently with them, such as writing a firmware image.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"BTCTicker/internal/recorder"
)

var (
	// ErrWindowActive is returned by Begin while another window is open.
	ErrWindowActive = errors.New("exclusive window already open")
	// ErrNoWindow is returned by End when no window is open.
	ErrNoWindow = errors.New("no exclusive window open")
)

// DefaultDrainWait bounds how long Begin waits for in-flight requests.
const DefaultDrainWait = 15 * time.Second

const source = "lifecycle"

// Suspender is the set of workers a window pauses.
type Suspender interface {
	SuspendAll()
	ResumeAll()
	InFlight() []<-chan struct{}
}

// Status describes the current window, if any.
type Status struct {
	InProgress bool      `json:"in_progress"`
	WindowID   string    `json:"window_id,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Windows    int       `json:"windows_total"`
}

// Coordinator opens and closes exclusive windows.
type Coordinator struct {
	workers   Suspender
	clock     clock.Clock
	rec       recorder.Recorder
	drainWait time.Duration

	inProgress atomic.Bool

	mu       sync.Mutex
	windowID string
	since    time.Time
	windows  int
}

// NewCoordinator creates a coordinator. drainWait <= 0 selects DefaultDrainWait.
func NewCoordinator(workers Suspender, clk clock.Clock, rec recorder.Recorder, drainWait time.Duration) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	if drainWait <= 0 {
		drainWait = DefaultDrainWait
	}
	return &Coordinator{workers: workers, clock: clk, rec: rec, drainWait: drainWait}
}

// InProgress reports whether an exclusive window is open.
func (c *Coordinator) InProgress() bool {
	return c.inProgress.Load()
}

// Status returns the current window state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		InProgress: c.inProgress.Load(),
		WindowID:   c.windowID,
		Since:      c.since,
		Windows:    c.windows,
	}
}

// Begin marks an update in progress, suspends every worker and waits up to
// the drain bound for requests already in flight. A request that outlives the
// bound is recorded and allowed to complete while the window is open.
func (c *Coordinator) Begin(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inProgress.Load() {
		c.mu.Unlock()
		return "", ErrWindowActive
	}
	c.inProgress.Store(true)
	id := uuid.NewString()
	c.windowID = id
	c.since = c.clock.Now()
	c.windows++
	c.mu.Unlock()

	c.workers.SuspendAll()
	pending := c.workers.InFlight()
	if n := c.awaitDrain(ctx, pending); n > 0 {
		recorder.Report(c.rec, recorder.Event{
			Time: c.clock.Now(), Level: recorder.LevelWarn, Kind: recorder.KindWindow, Source: source, WindowID: id,
			Message: fmt.Sprintf("%d request(s) still in flight after %s, proceeding", n, c.drainWait),
		})
	}
	recorder.Report(c.rec, recorder.Event{
		Time: c.clock.Now(), Level: recorder.LevelInfo, Kind: recorder.KindWindow, Source: source, WindowID: id,
		Message: "exclusive window opened",
	})
	return id, nil
}

// End resumes every worker and clears the update flag.
func (c *Coordinator) End() error {
	c.mu.Lock()
	if !c.inProgress.Load() {
		c.mu.Unlock()
		return ErrNoWindow
	}
	id := c.windowID
	since := c.since
	c.mu.Unlock()

	c.workers.ResumeAll()

	c.mu.Lock()
	c.inProgress.Store(false)
	c.windowID = ""
	c.since = time.Time{}
	c.mu.Unlock()

	recorder.Report(c.rec, recorder.Event{
		Time: c.clock.Now(), Level: recorder.LevelInfo, Kind: recorder.KindWindow, Source: source, WindowID: id,
		Message: fmt.Sprintf("exclusive window closed after %s", c.clock.Since(since)),
	})
	return nil
}

// RunExclusive runs fn inside a window. The window is closed whether fn
// succeeds, fails or panics.
func (c *Coordinator) RunExclusive(ctx context.Context, fn func(ctx context.Context, windowID string) error) (err error) {
	id, err := c.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := c.End(); endErr != nil && err == nil {
			err = endErr
		}
	}()
	return fn(ctx, id)
}

// awaitDrain returns how many requests were still running when the wait ended.
func (c *Coordinator) awaitDrain(ctx context.Context, pending []<-chan struct{}) int {
	if len(pending) == 0 {
		return 0
	}
	timer := c.clock.Timer(c.drainWait)
	defer timer.Stop()

	for i, ch := range pending {
		select {
		case <-ch:
		case <-timer.C:
			return countOpen(pending[i:])
		case <-ctx.Done():
			return countOpen(pending[i:])
		}
	}
	return 0
}

func countOpen(chans []<-chan struct{}) int {
	n := 0
	for _, ch := range chans {
		select {
		case <-ch:
		default:
			n++
		}
	}
	return n
}
