package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a journal database.
// The path should be a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			debug_key TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			attempt INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_journal_run_id ON journal(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_event_id ON journal(event_id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	r = stamp(r)
	res, err := s.db.Exec(`
		INSERT INTO journal (run_id, event_id, debug_key, kind, attempt, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.EventID, r.DebugKey, string(r.Kind), r.Attempt, r.Detail,
		r.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("read record seq: %w", err)
	}
	r.Seq = seq
	return r, nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Record, error) {
	if runID == "" {
		return s.query(`SELECT seq, run_id, event_id, debug_key, kind, attempt, detail, timestamp
			FROM journal ORDER BY seq`)
	}
	return s.query(`SELECT seq, run_id, event_id, debug_key, kind, attempt, detail, timestamp
		FROM journal WHERE run_id = ? ORDER BY seq`, runID)
}

// ListByEvent implements Store.
func (s *SQLiteStore) ListByEvent(eventID string) ([]Record, error) {
	return s.query(`SELECT seq, run_id, event_id, debug_key, kind, attempt, detail, timestamp
		FROM journal WHERE event_id = ? ORDER BY seq`, eventID)
}

// Count implements Store.
func (s *SQLiteStore) Count(runID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	var err error
	if runID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM journal WHERE run_id = ?`, runID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) query(q string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r         Record
			kind      string
			timestamp string
		)
		if err := rows.Scan(&r.Seq, &r.RunID, &r.EventID, &r.DebugKey, &kind, &r.Attempt, &r.Detail, &timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind = Kind(kind)
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
