// Package store persists engine state in an embedded SQLite database:
// competence states, revision items, learning-path snapshots, the
// student directory and the append-only event log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// DefaultSnapshotKeep is how many learning-path snapshots are kept per student.
const DefaultSnapshotKeep = 5

// Store holds the database handle and provides access to repositories.
type Store struct {
	db   *sql.DB
	drv  *entsql.Driver
	seq  *sequenceCounter
	now  func() time.Time
	keep int

	// pathMu serializes snapshot read-merge-write cycles.
	pathMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for event and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSnapshotKeep sets how many path snapshots are kept per student.
func WithSnapshotKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and runs auto-migration.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps pragmas and
	// in-memory databases consistent across queries.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	if err := migrate(context.Background(), drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		drv.Close()
		return nil, err
	}

	s := &Store{db: db, drv: drv, seq: seq, now: time.Now, keep: DefaultSnapshotKeep}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// States returns the competence state repository.
func (s *Store) States() *StateRepo {
	return &StateRepo{db: s.db}
}

// Revisions returns the revision item repository.
func (s *Store) Revisions() *RevisionRepo {
	return &RevisionRepo{db: s.db}
}

// Paths returns the learning-path repository.
func (s *Store) Paths() *PathRepo {
	return &PathRepo{store: s}
}

// Events returns the event log.
func (s *Store) Events() *EventRepo {
	return &EventRepo{db: s.db, seq: s.seq, now: s.now}
}

// Students returns the student directory.
func (s *Store) Students() *StudentRepo {
	return &StudentRepo{db: s.db, now: s.now}
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// withPragmas adds per-connection pragmas to dsn unless it sets its own.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DefaultDBPath resolves the database file path in priority order:
// 1. REVEDKIDS_DB environment variable
// 2. $XDG_DATA_HOME/revedkids/revedkids.db
// 3. ~/.local/share/revedkids/revedkids.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("REVEDKIDS_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "revedkids", "revedkids.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// selectQuery starts a SQLite select on table.
func selectQuery(table string, columns ...string) *entsql.Selector {
	return entsql.Dialect(dialect.SQLite).Select(columns...).From(entsql.Table(table))
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
