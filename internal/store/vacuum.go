package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
)

// VacuumInterval is the minimum interval between VACUUM operations.
const VacuumInterval = 30 * 24 * time.Hour

const metadataKeyLastVacuum = "last_vacuum_at"

// VacuumIfNeeded runs VACUUM if the last vacuum was more than
// VacuumInterval ago. Only meaningful for the SQLite engine; a no-op for
// Postgres, which autovacuums. Returns true if VACUUM was performed.
func (s *Store) VacuumIfNeeded(ctx context.Context, log *zap.Logger) (bool, error) {
	if s.driver != DriverSQLite {
		return false, nil
	}

	lastVacuum, err := s.getLastVacuumTime(ctx)
	if err != nil {
		return false, err
	}
	if time.Since(lastVacuum) < VacuumInterval {
		return false, nil
	}

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return false, err
	}
	log.Info("vacuum completed", zap.Duration("elapsed", time.Since(start)))

	if err := s.setLastVacuumTime(ctx, time.Now()); err != nil {
		// Log but don't fail - VACUUM succeeded
		log.Warn("failed to update last_vacuum_at", zap.Error(err))
	}
	return true, nil
}

func (s *Store) getLastVacuumTime(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM metadata WHERE key = ?`),
		metadataKeyLastVacuum,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		// Never vacuumed - zero time triggers the first VACUUM
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// Invalid format - trigger VACUUM
		return time.Time{}, nil
	}
	return t, nil
}

func (s *Store) setLastVacuumTime(ctx context.Context, t time.Time) error {
	query := s.rebind(`INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	_, err := s.db.ExecContext(ctx, query, metadataKeyLastVacuum, t.UTC().Format(time.RFC3339))
	return err
}
