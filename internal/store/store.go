// Package store provides SQL persistence for Firewatch events, photos,
// and live tracks. The backing engine is selected at open time: SQLite
// for single-binary deployments, PostgreSQL when a server engine is
// wanted. All operations are expressed against the same contracts so the
// engine is swappable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DeleteMode controls what DeleteByOwner does with a matched row.
type DeleteMode string

const (
	// DeleteSoft flips the status flag and keeps the row for audit.
	DeleteSoft DeleteMode = "soft"
	// DeleteHard removes the row and its photos.
	DeleteHard DeleteMode = "hard"
)

// Store wraps a SQL database connection for one of the supported engines.
type Store struct {
	db         *sql.DB
	driver     string
	deleteMode DeleteMode
}

// Options configures Open.
type Options struct {
	// Driver is DriverSQLite or DriverPostgres. Empty means SQLite.
	Driver string
	// DSN is the engine connection string. For SQLite this is the
	// database file path.
	DSN string
	// DeleteMode selects soft or hard owner deletion. Empty means soft.
	DeleteMode DeleteMode
}

// Open opens the database, verifies the connection, and runs migrations.
func Open(opts Options) (*Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(opts.DSN)
	case DriverPostgres:
		db, err = sql.Open("postgres", opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	mode := opts.DeleteMode
	if mode == "" {
		mode = DeleteSoft
	}

	s := &Store{db: db, driver: driver, deleteMode: mode}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// openSQLite opens a SQLite database file with WAL mode and busy_timeout.
func openSQLite(path string) (*sql.DB, error) {
	// URL-escape the path to handle special characters (?, #, spaces, etc.)
	escapedPath := url.PathEscape(path)

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", escapedPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// WAL allows concurrent readers with a single writer; a few
	// connections give read parallelism while writes serialize.
	db.SetMaxOpenConns(4)

	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Mode returns the configured delete mode.
func (s *Store) Mode() DeleteMode {
	return s.deleteMode
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL. SQL in this
// package is written once with ? placeholders.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// journalMode returns the current SQLite journal mode (for testing).
func (s *Store) journalMode() (string, error) {
	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", err
	}
	return mode, nil
}
