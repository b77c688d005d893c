package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists diagnostics events to a bounded SQLite table.
type SQLiteRecorder struct {
	db         *sql.DB
	mu         sync.Mutex
	maxEntries int
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, maxEntries int) (*SQLiteRecorder, error) {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, maxEntries: maxEntries}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s (max %d events)", dbPath, maxEntries)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS diagnostics (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			level     TEXT NOT NULL,
			kind      TEXT NOT NULL,
			source    TEXT,
			message   TEXT,
			window_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_ts ON diagnostics(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record inserts evt and drops the oldest rows beyond the configured bound.
func (r *SQLiteRecorder) Record(evt *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := evt.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := r.db.Exec(`INSERT INTO diagnostics
		(timestamp, level, kind, source, message, window_id)
		VALUES (?,?,?,?,?,?)`,
		ts.UnixMilli(), string(evt.Level), string(evt.Kind), evt.Source, evt.Message, evt.WindowID,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	if _, err := r.db.Exec(`DELETE FROM diagnostics WHERE id <= ?`, id-int64(r.maxEntries)); err != nil {
		return fmt.Errorf("trim events: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (r *SQLiteRecorder) Recent(limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = r.maxEntries
	}
	rows, err := r.db.Query(`SELECT id, timestamp, level, kind, source, message, window_id
		FROM diagnostics ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e     Event
			ts    int64
			level string
			kind  string
		)
		if err := rows.Scan(&e.ID, &ts, &level, &kind, &e.Source, &e.Message, &e.WindowID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Level = Level(level)
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
