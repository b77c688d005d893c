// Package connectivity tracks the network link, drives reconnection with a
// tiered backoff and exposes the gate that refresh workers consult.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"BTCTicker/internal/recorder"
)

// State is the link state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Config holds reconnection settings.
type Config struct {
	SSID         string
	Password     string
	BaseBackoff  time.Duration // first retry delay
	JoinAttempts int           // joins per attempt
	JoinUnit     time.Duration // delay after failed join i is i*2 units
}

// Status is a point-in-time view of the monitor.
type Status struct {
	State       string    `json:"state"`
	Ready       bool      `json:"ready"`
	Failures    int       `json:"consecutive_failures"`
	LastAttempt time.Time `json:"last_attempt"`
	NextAttempt time.Time `json:"next_attempt"`
	LastError   string    `json:"last_error,omitempty"`
}

const source = "connectivity"

// Monitor owns the decision of when to (re)connect. Tick is non-blocking;
// reconnection attempts run on their own goroutine.
type Monitor struct {
	cfg    Config
	driver Driver
	clock  clock.Clock
	rec    recorder.Recorder

	ready atomic.Bool

	mu          sync.Mutex
	state       State
	failures    int
	lastAttempt time.Time
	nextAttempt time.Time
	attempting  bool
	lastErr     error
	listeners   []func(ready bool)

	wg sync.WaitGroup
}

// NewMonitor creates a monitor in the Disconnected state with an attempt due
// immediately.
func NewMonitor(cfg Config, driver Driver, clk clock.Clock, rec recorder.Recorder) *Monitor {
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.JoinAttempts <= 0 {
		cfg.JoinAttempts = 3
	}
	if cfg.JoinUnit <= 0 {
		cfg.JoinUnit = time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		cfg:         cfg,
		driver:      driver,
		clock:       clk,
		rec:         rec,
		state:       StateDisconnected,
		nextAttempt: clk.Now(),
	}
}

// Ready reports whether workers may start network requests.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// OnChange registers fn to be called whenever the gate flips.
func (m *Monitor) OnChange(fn func(ready bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns the current monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:       m.state.String(),
		Ready:       m.ready.Load(),
		Failures:    m.failures,
		LastAttempt: m.lastAttempt,
		NextAttempt: m.nextAttempt,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// Tick observes the link and, when due, starts a reconnection attempt.
func (m *Monitor) Tick(ctx context.Context) {
	up := m.driver.Connected()
	now := m.clock.Now()

	m.mu.Lock()
	if m.attempting {
		m.mu.Unlock()
		return
	}
	var out outcome
	switch {
	case up && m.state != StateConnected:
		out = m.markConnected(now)
	case !up && m.state == StateConnected:
		out = m.markLost(now)
	case !up && !now.Before(m.nextAttempt):
		m.state = StateConnecting
		m.attempting = true
		m.lastAttempt = now
		m.wg.Add(1)
		go m.attempt(ctx)
	}
	m.mu.Unlock()

	m.deliver(out)
}

// Wait blocks until any running reconnection attempt has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// outcome is what a state change owes the outside world. It is delivered
// after m.mu is released.
type outcome struct {
	event     *recorder.Event
	listeners []func(bool)
}

// markConnected must be called with m.mu held.
func (m *Monitor) markConnected(now time.Time) outcome {
	m.state = StateConnected
	m.failures = 0
	m.lastErr = nil
	m.nextAttempt = time.Time{}
	m.ready.Store(true)
	return outcome{
		event: &recorder.Event{
			Time: now, Level: recorder.LevelInfo, Kind: recorder.KindTransition,
			Source: source, Message: "link connected",
		},
		listeners: slices.Clone(m.listeners),
	}
}

// markLost must be called with m.mu held.
func (m *Monitor) markLost(now time.Time) outcome {
	m.ready.Store(false)
	m.state = StateDisconnected
	m.failures = 1
	m.nextAttempt = now.Add(Backoff(m.cfg.BaseBackoff, m.failures))
	return outcome{
		event: &recorder.Event{
			Time: now, Level: recorder.LevelWarn, Kind: recorder.KindTransition,
			Source: source, Message: fmt.Sprintf("link lost, reconnecting at %s", m.nextAttempt.Format(time.RFC3339)),
		},
		listeners: slices.Clone(m.listeners),
	}
}

func (m *Monitor) deliver(out outcome) {
	if out.event != nil {
		recorder.Report(m.rec, *out.event)
	}
	if len(out.listeners) == 0 {
		return
	}
	ready := m.ready.Load()
	for _, fn := range out.listeners {
		fn(ready)
	}
}

func (m *Monitor) attempt(ctx context.Context) {
	defer m.wg.Done()

	err := m.connect(ctx)
	now := m.clock.Now()

	m.mu.Lock()
	m.attempting = false
	var out outcome
	if err == nil {
		out = m.markConnected(now)
	} else {
		m.state = StateDisconnected
		m.failures++
		m.lastErr = err
		m.nextAttempt = m.lastAttempt.Add(Backoff(m.cfg.BaseBackoff, m.failures))
		kind, _ := KindOf(err)
		out.event = &recorder.Event{
			Time: now, Level: recorder.LevelWarn, Kind: recorder.KindConnectivity, Source: source,
			Message: fmt.Sprintf("%s (failures=%d, next=%s): %v", kind, m.failures, m.nextAttempt.Format(time.RFC3339), err),
		}
	}
	m.mu.Unlock()

	m.deliver(out)
}

// connect scans, picks the strongest matching network and tries to join it
// up to JoinAttempts times with a linearly growing pause.
func (m *Monitor) connect(ctx context.Context) error {
	aps, err := m.driver.Scan(ctx)
	if err != nil {
		return &Error{Kind: FailureScan, SSID: m.cfg.SSID, Err: err}
	}
	ap, ok := SelectStrongest(aps, m.cfg.SSID)
	if !ok {
		return &Error{Kind: FailureNotFound, SSID: m.cfg.SSID}
	}

	var lastErr *Error
	for i := 1; i <= m.cfg.JoinAttempts; i++ {
		err := m.driver.Join(ctx, ap, m.cfg.Password)
		if err == nil {
			log.Printf("[INFO] joined %q (signal %d dBm) on attempt %d", ap.SSID, ap.Signal, i)
			return nil
		}
		lastErr = classifyJoin(ap.SSID, err)
		log.Printf("[WARN] join %q attempt %d/%d failed: %v", ap.SSID, i, m.cfg.JoinAttempts, err)
		if i == m.cfg.JoinAttempts {
			break
		}
		if err := m.sleep(ctx, time.Duration(i*2)*m.cfg.JoinUnit); err != nil {
			return &Error{Kind: FailureTimeout, SSID: ap.SSID, Err: err}
		}
	}
	return lastErr
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) error {
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
