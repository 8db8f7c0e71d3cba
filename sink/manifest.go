package sink

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS frames (
    frame      INTEGER PRIMARY KEY,
    width      INTEGER NOT NULL,
    height     INTEGER NOT NULL,
    path       TEXT NOT NULL DEFAULT '',
    sha256     TEXT NOT NULL,
    written_at INTEGER NOT NULL
);
`

// Record describes one frame stored in a manifest.
type Record struct {
	Index         int
	Width, Height int

	// Path is the file the frame was written to, or "" if the wrapped sink
	// does not write files.
	Path string

	// SHA256 is the hex digest of the frame's packed RGB pixels.
	SHA256 string

	Written time.Time
}

// pather is implemented by sinks that write frames to files, such as File.
type pather interface {
	Path(index int) string
}

// Manifest wraps a sink and records every successfully written frame in an
// SQLite database. Re-rendering a frame replaces its record.
//
// WriteFrame may be called concurrently, for example from Async; Close must
// not race with it.
type Manifest struct {
	next Sink
	db   *sql.DB
	now  func() time.Time

	mu     sync.Mutex
	closed bool
}

// OpenManifest opens or creates the database at path and wraps next. next may
// be nil to record frames without writing them anywhere else.
func OpenManifest(path string, next Sink) (*Manifest, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sink: open manifest: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(manifestSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sink: create manifest schema: %w", err)
	}
	slogger().Info("sink: manifest opened", "path", path)
	return &Manifest{next: next, db: db, now: time.Now}, nil
}

// WriteFrame implements Sink. The record is stored only after the wrapped
// sink accepted the frame.
func (m *Manifest) WriteFrame(ctx context.Context, f Frame) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}

	var path string
	if m.next != nil {
		if err := m.next.WriteFrame(ctx, f); err != nil {
			return err
		}
		if p, ok := m.next.(pather); ok {
			path = p.Path(f.Index)
		}
	}

	sum := sha256.Sum256(f.Pix)
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO frames (frame, width, height, path, sha256, written_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Index, f.Width, f.Height, path, hex.EncodeToString(sum[:]), m.now().UnixNano())
	if err != nil {
		return fmt.Errorf("sink: record frame %d: %w", f.Index, err)
	}
	return nil
}

// Flush implements Flusher by flushing the wrapped sink.
func (m *Manifest) Flush(ctx context.Context) error {
	if m.next == nil {
		return nil
	}
	return Flush(ctx, m.next)
}

// Frames returns all records ordered by frame index.
func (m *Manifest) Frames(ctx context.Context) ([]Record, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT frame, width, height, path, sha256, written_at FROM frames ORDER BY frame`)
	if err != nil {
		return nil, fmt.Errorf("sink: query manifest: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts int64
		if err := rows.Scan(&r.Index, &r.Width, &r.Height, &r.Path, &r.SHA256, &ts); err != nil {
			return nil, fmt.Errorf("sink: scan manifest: %w", err)
		}
		r.Written = time.Unix(0, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the wrapped sink and the database.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.next != nil {
		err = m.next.Close()
	}
	if cerr := m.db.Close(); err == nil {
		err = cerr
	}
	return err
}
