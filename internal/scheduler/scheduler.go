// Package scheduler runs the foreground loop: it polls connectivity, skips
// rendering during exclusive windows and hands snapshots to the renderer.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"BTCTicker/internal/connectivity"
	"BTCTicker/internal/display"
	"BTCTicker/internal/model"
	"BTCTicker/internal/recorder"
	"BTCTicker/internal/worker"
)

// LinkMonitor is the connectivity surface the loop drives.
type LinkMonitor interface {
	Tick(ctx context.Context)
	Ready() bool
	Status() connectivity.Status
}

// WindowState reports whether an exclusive window is open.
type WindowState interface {
	InProgress() bool
}

// SnapshotSource yields consistent snapshots of the shared state.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// WorkerStatuser reports worker states for the heartbeat.
type WorkerStatuser interface {
	Statuses() []worker.Status
}

// Options configures the loop cadence.
type Options struct {
	// Tick is the scheduling quantum; it bounds idle CPU use.
	Tick time.Duration
	// LinkCheck is how often connectivity is polled, independent of Tick.
	LinkCheck time.Duration
	// FreshTTL marks series older than this as stale in the heartbeat.
	FreshTTL time.Duration
}

// Stats counts loop activity.
type Stats struct {
	Ticks      int
	Renders    int
	Skipped    int
	LinkChecks int
}

// Scheduler is the single cooperative foreground loop plus cron jobs.
type Scheduler struct {
	Cron        *cron.Cron
	Monitor     LinkMonitor
	Coordinator WindowState
	Store       SnapshotSource
	Renderer    display.Renderer
	Workers     WorkerStatuser
	Recorder    recorder.Recorder

	clock clock.Clock
	opts  Options

	mu        sync.Mutex
	lastCheck time.Time
	stats     Stats
}

// NewScheduler creates a new Scheduler.
func NewScheduler(mon LinkMonitor, coord WindowState, store SnapshotSource, r display.Renderer,
	workers WorkerStatuser, rec recorder.Recorder, clk clock.Clock, opts Options) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if opts.Tick <= 0 {
		opts.Tick = 50 * time.Millisecond
	}
	if opts.LinkCheck <= 0 {
		opts.LinkCheck = time.Second
	}
	if opts.FreshTTL <= 0 {
		opts.FreshTTL = 5 * time.Minute
	}
	return &Scheduler{
		Cron:        cron.New(cron.WithSeconds()),
		Monitor:     mon,
		Coordinator: coord,
		Store:       store,
		Renderer:    r,
		Workers:     workers,
		Recorder:    rec,
		clock:       clk,
		opts:        opts,
	}
}

// RegisterHeartbeat registers the periodic status diagnostic.
func (s *Scheduler) RegisterHeartbeat(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.heartbeat); err != nil {
		return fmt.Errorf("register heartbeat: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Run drives Tick once per quantum until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.opts.Tick)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one loop iteration. It never blocks on network I/O.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	s.stats.Ticks++
	checkLink := s.lastCheck.IsZero() || now.Sub(s.lastCheck) >= s.opts.LinkCheck
	if checkLink {
		s.lastCheck = now
		s.stats.LinkChecks++
	}
	s.mu.Unlock()

	if checkLink {
		s.Monitor.Tick(ctx)
	}

	if s.Coordinator.InProgress() {
		s.mu.Lock()
		s.stats.Skipped++
		s.mu.Unlock()
		return
	}

	snap := s.Store.Snapshot()
	if err := s.Renderer.Render(snap, now); err != nil {
		log.Printf("[ERROR] render: %v", err)
		return
	}
	s.mu.Lock()
	s.stats.Renders++
	s.mu.Unlock()
}

// Stats returns loop counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) heartbeat() {
	now := s.clock.Now()
	link := s.Monitor.Status()
	snap := s.Store.Snapshot()

	var stale []string
	for _, series := range snap.Stale(now, s.opts.FreshTTL) {
		stale = append(stale, string(series))
	}
	var workers []string
	if s.Workers != nil {
		for _, st := range s.Workers.Statuses() {
			workers = append(workers, fmt.Sprintf("%s=%s/%d/%d", st.Series, st.Phase, st.Requests, st.Failures))
		}
	}
	msg := fmt.Sprintf("link=%s failures=%d window=%v workers=[%s] stale=[%s]",
		link.State, link.Failures, s.Coordinator.InProgress(),
		strings.Join(workers, " "), strings.Join(stale, " "))

	recorder.Report(s.Recorder, recorder.Event{
		Time: now, Level: recorder.LevelInfo, Kind: recorder.KindHeartbeat, Source: "scheduler", Message: msg,
	})
}
