package display

import (
	"log"
	"sync"
	"time"

	"BTCTicker/internal/model"
)

// Renderer consumes snapshots and produces frames.
type Renderer interface {
	Render(snap model.Snapshot, now time.Time) error
}

// LogRenderer writes frames to the std logger, only when they change.
type LogRenderer struct {
	Symbol string
	TTL    time.Duration

	mu   sync.Mutex
	last Frame
}

// NewLogRenderer creates a renderer for symbol marking values older than ttl stale.
func NewLogRenderer(symbol string, ttl time.Duration) *LogRenderer {
	return &LogRenderer{Symbol: symbol, TTL: ttl}
}

func (r *LogRenderer) Render(snap model.Snapshot, now time.Time) error {
	f := Format(r.Symbol, snap, now, r.TTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	if f == r.last {
		return nil
	}
	r.last = f
	log.Printf("[INFO] display [%s] %s", f.Color, f.Text)
	return nil
}

// Last returns the most recently rendered frame.
func (r *LogRenderer) Last() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
