package worker

import (
	"context"
	"sync"
)

// Pool runs a fixed set of workers and applies suspension to all of them.
type Pool struct {
	workers []*Worker
}

// NewPool creates a pool over workers.
func NewPool(workers ...*Worker) *Pool {
	return &Pool{workers: workers}
}

// Run starts every worker and blocks until ctx is cancelled or a worker hits
// a fatal error, in which case the others are stopped and the error returned.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(w)
	}
	wg.Wait()
	return firstErr
}

// SuspendAll suspends every worker.
func (p *Pool) SuspendAll() {
	for _, w := range p.workers {
		w.Suspend()
	}
}

// ResumeAll resumes every worker.
func (p *Pool) ResumeAll() {
	for _, w := range p.workers {
		w.Resume()
	}
}

// Wake asks every worker to re-check its gate and schedule.
func (p *Pool) Wake() {
	for _, w := range p.workers {
		w.Wake()
	}
}

// InFlight returns completion channels for workers with a request running.
func (p *Pool) InFlight() []<-chan struct{} {
	var out []<-chan struct{}
	for _, w := range p.workers {
		if ch := w.InFlight(); ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

// Statuses returns a status per worker.
func (p *Pool) Statuses() []Status {
	out := make([]Status, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Status())
	}
	return out
}
