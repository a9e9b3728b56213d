// Package ledger records completed builds in a SQLite database so past
// outputs can be traced back to the spec that produced them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultFile is the ledger's location relative to the working directory.
const DefaultFile = "output/builds.db"

// Entry is one recorded build.
type Entry struct {
	ID          string
	Fingerprint string
	Spec        string
	Output      string
	Features    int
	CacheHit    bool
	Forced      bool
	Duration    time.Duration
	CreatedAt   time.Time
}

// Ledger is a handle on the builds table.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; parallel builds queue on the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		spec TEXT NOT NULL,
		output TEXT NOT NULL,
		features INTEGER NOT NULL DEFAULT 0,
		cache_hit INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		duration_ns INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_builds_fingerprint ON builds(fingerprint);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts e, assigning an ID and timestamp when unset, and returns
// the stored entry.
func (l *Ledger) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO builds (id, fingerprint, spec, output, features, cache_hit, forced, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Fingerprint, e.Spec, e.Output, e.Features,
		boolInt(e.CacheHit), boolInt(e.Forced), int64(e.Duration), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return e, fmt.Errorf("record build %s: %w", e.Fingerprint, err)
	}
	return e, nil
}

const selectEntries = `
	SELECT id, fingerprint, spec, output, features, cache_hit, forced, duration_ns, created_at
	FROM builds`

// Recent returns up to n entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	return l.query(ctx, selectEntries+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
}

// ByFingerprint returns every build of fingerprint, newest first.
func (l *Ledger) ByFingerprint(ctx context.Context, fingerprint string) ([]Entry, error) {
	return l.query(ctx, selectEntries+` WHERE fingerprint = ? ORDER BY created_at DESC, rowid DESC`, fingerprint)
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			hit, forced      int
			durNS, createdNS int64
		)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.Spec, &e.Output, &e.Features,
			&hit, &forced, &durNS, &createdNS); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.CacheHit = hit != 0
		e.Forced = forced != 0
		e.Duration = time.Duration(durNS)
		e.CreatedAt = time.Unix(0, createdNS)
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
