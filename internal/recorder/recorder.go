package recorder

import (
	"log"
	"time"
)

// Level is the severity of a diagnostics event.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// Kind classifies a diagnostics event.
type Kind string

const (
	KindNetwork      Kind = "NetworkError"
	KindDecode       Kind = "DecodeError"
	KindConnectivity Kind = "ConnectivityError"
	KindTransition   Kind = "Transition"
	KindFatal        Kind = "Fatal"
	KindHeartbeat    Kind = "Heartbeat"
	KindWindow       Kind = "ExclusiveWindow"
	KindRefresh      Kind = "RefreshError"
)

// Event is one diagnostics record.
type Event struct {
	ID       int64     `json:"id,omitempty"`
	Time     time.Time `json:"time"`
	Level    Level     `json:"level"`
	Kind     Kind      `json:"kind"`
	Source   string    `json:"source"` // series, "connectivity", "lifecycle", ...
	Message  string    `json:"message"`
	WindowID string    `json:"window_id,omitempty"` // set for events inside an exclusive window
}

// Recorder is the append-only, bounded diagnostics sink. Dropping the oldest
// entries once full is the recorder's job, not the caller's.
type Recorder interface {
	Record(evt *Event) error
	Recent(limit int) ([]Event, error)
	Close() error
}

// Report records evt and echoes it to the std logger. Recording errors are
// logged and otherwise ignored: diagnostics must never stall the caller.
func Report(r Recorder, evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	log.Printf("[%s] %s %s: %s", evt.Level, evt.Source, evt.Kind, evt.Message)
	if r == nil {
		return
	}
	if err := r.Record(&evt); err != nil {
		log.Printf("[ERROR] record diagnostics event: %v", err)
	}
}
