package recorder

import "sync"

// MemoryRecorder keeps the last N events in a ring. It is used when SQLite is
// not configured and in tests.
type MemoryRecorder struct {
	mu         sync.Mutex
	entries    []Event
	maxEntries int
	nextID     int64
}

// NewMemoryRecorder creates a recorder holding at most maxEntries events.
func NewMemoryRecorder(maxEntries int) *MemoryRecorder {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &MemoryRecorder{
		entries:    make([]Event, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

func (m *MemoryRecorder) Record(evt *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e := *evt
	e.ID = m.nextID
	m.entries = append(m.entries, e)
	if len(m.entries) > m.maxEntries {
		m.entries = m.entries[len(m.entries)-m.maxEntries:]
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (m *MemoryRecorder) Recent(limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Count returns how many retained events have the given kind.
func (m *MemoryRecorder) Count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for _, e := range m.entries {
		if e.Kind == kind {
			c++
		}
	}
	return c
}

func (m *MemoryRecorder) Close() error { return nil }
