// Package journal records dynamic method invocations in a SQLite database.
//
// A Journal is a script.Tracer: install it on a domain with SetTracer (or
// fan it out next to a profiler with script.Tracers) and every Invoke made
// through that domain, including the lifecycle hooks the bridge forwards,
// becomes one row.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/hostbridge/script"
)

var log = commonlog.GetLogger("hostbridge.journal")

// ErrClosed is returned by queries on a closed journal.
var ErrClosed = errors.New("journal: closed")

const schema = `CREATE TABLE IF NOT EXISTS dispatches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	domain      INTEGER NOT NULL,
	class       TEXT NOT NULL,
	method      TEXT NOT NULL,
	receiver    TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
)`

// Journal appends invocation records to a SQLite table.
type Journal struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	closed bool
}

// Open opens or creates the journal database at path, creating parent
// directories as needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Infof("journal opened at %s", path)
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection. Records traced afterwards are
// dropped.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// TraceInvoke implements script.Tracer. Write failures are logged, never
// returned to the invoking code.
func (j *Journal) TraceInvoke(rec script.InvokeRecord) {
	if err := j.Append(rec); err != nil && !errors.Is(err, ErrClosed) {
		log.Errorf("journal: %s", err)
	}
}

// Append writes one record.
func (j *Journal) Append(rec script.InvokeRecord) error {
	var receiver, errText string
	if rec.Receiver != nil {
		receiver = rec.Receiver.String()
	}
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	class := ""
	if c := rec.Class(); c != nil {
		class = c.FullName()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	_, err := j.db.Exec(
		`INSERT INTO dispatches (domain, class, method, receiver, started_at, duration_ns, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(rec.Domain), class, rec.Method.Name(), receiver,
		rec.Start.UnixNano(), rec.Duration.Nanoseconds(), errText,
	)
	if err != nil {
		return fmt.Errorf("saving dispatch: %w", err)
	}
	return nil
}

// Entry is one journaled invocation.
type Entry struct {
	ID       int64
	Domain   script.DomainID
	Class    string
	Method   string
	Receiver string
	Start    time.Time
	Duration time.Duration
	Err      string
}

// Recent returns the last n entries, oldest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.Query(
		`SELECT id, domain, class, method, receiver, started_at, duration_ns, error
		 FROM (SELECT * FROM dispatches ORDER BY id DESC LIMIT ?) ORDER BY id`, n)
	if err != nil {
		return nil, fmt.Errorf("querying dispatches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var domain, started, duration int64
		if err := rows.Scan(&e.ID, &domain, &e.Class, &e.Method, &e.Receiver, &started, &duration, &e.Err); err != nil {
			return nil, fmt.Errorf("scanning dispatch: %w", err)
		}
		e.Domain = script.DomainID(domain)
		e.Start = time.Unix(0, started)
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MethodSummary aggregates the journal for one class and method.
type MethodSummary struct {
	Class    string
	Method   string
	Calls    int64
	Failures int64
	Total    time.Duration
}

// Summary aggregates every journaled invocation by class and method, ordered
// by class, then method.
func (j *Journal) Summary() ([]MethodSummary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.Query(
		`SELECT class, method, COUNT(*), SUM(CASE WHEN error <> '' THEN 1 ELSE 0 END), SUM(duration_ns)
		 FROM dispatches GROUP BY class, method ORDER BY class, method`)
	if err != nil {
		return nil, fmt.Errorf("summarizing dispatches: %w", err)
	}
	defer rows.Close()

	var out []MethodSummary
	for rows.Next() {
		var s MethodSummary
		var total int64
		if err := rows.Scan(&s.Class, &s.Method, &s.Calls, &s.Failures, &total); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		s.Total = time.Duration(total)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of journaled invocations.
func (j *Journal) Count() (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	var n int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM dispatches").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting dispatches: %w", err)
	}
	return n, nil
}
