package store

import (
	"context"
	"fmt"
)

// migrate runs database migrations for the selected engine.
func (s *Store) migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.driver == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Timestamps are epoch seconds, coordinates are double-precision degrees,
// identifiers are opaque increasing integers.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ts         INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		lat        REAL,
		lon        REAL,
		owner_id   INTEGER,
		group_id   INTEGER,
		text       TEXT,
		photo_ref  TEXT,
		status     TEXT NOT NULL DEFAULT 'active',
		contact    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON events(kind, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_ts ON events(status, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner_id)`,

	`CREATE TABLE IF NOT EXISTS photos (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		file_ref   TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_event ON photos(event_id)`,

	`CREATE TABLE IF NOT EXISTS live_tracks (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id       INTEGER NOT NULL UNIQUE,
		contact        TEXT,
		lat            REAL NOT NULL,
		lon            REAL NOT NULL,
		started_at     INTEGER NOT NULL,
		live_until     INTEGER NOT NULL,
		last_update_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_live_until ON live_tracks(live_until)`,

	`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         BIGSERIAL PRIMARY KEY,
		ts         BIGINT NOT NULL,
		kind       TEXT NOT NULL,
		lat        DOUBLE PRECISION,
		lon        DOUBLE PRECISION,
		owner_id   BIGINT,
		group_id   BIGINT,
		text       TEXT,
		photo_ref  TEXT,
		status     TEXT NOT NULL DEFAULT 'active',
		contact    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON events(kind, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_ts ON events(status, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner_id)`,

	`CREATE TABLE IF NOT EXISTS photos (
		id         BIGSERIAL PRIMARY KEY,
		event_id   BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		file_ref   TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_event ON photos(event_id)`,

	`CREATE TABLE IF NOT EXISTS live_tracks (
		id             BIGSERIAL PRIMARY KEY,
		owner_id       BIGINT NOT NULL UNIQUE,
		contact        TEXT,
		lat            DOUBLE PRECISION NOT NULL,
		lon            DOUBLE PRECISION NOT NULL,
		started_at     BIGINT NOT NULL,
		live_until     BIGINT NOT NULL,
		last_update_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_live_until ON live_tracks(live_until)`,

	`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
