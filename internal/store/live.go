package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adriatica/firewatch/internal/event"
)

// Live tracking is a last-writer-wins stream keyed by owner identity, not
// an append log: only the current position matters for map rendering, so
// one logical live share maps to exactly one row no matter how many
// position updates arrive.

// StartOrRefresh upserts a live track for the owner. An existing row is
// fully overwritten (position, contact, expiry); otherwise a new row is
// inserted. Returns the row id.
func (s *Store) StartOrRefresh(ctx context.Context, t *event.LiveTrack) (int64, error) {
	query := s.rebind(`
	INSERT INTO live_tracks (owner_id, contact, lat, lon, started_at, live_until, last_update_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (owner_id) DO UPDATE SET
		contact        = excluded.contact,
		lat            = excluded.lat,
		lon            = excluded.lon,
		started_at     = excluded.started_at,
		live_until     = excluded.live_until,
		last_update_at = excluded.last_update_at
	RETURNING id
	`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		t.OwnerID,
		nullStr(t.Contact),
		t.Lat,
		t.Lon,
		t.StartedAt,
		t.LiveUntil,
		t.LastUpdateAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start live track: %w", err)
	}

	t.ID = id
	return id, nil
}

// UpdatePosition mutates the position of an existing live track. Unknown
// owners are a no-op, not an error: late updates after expiry or removal
// are expected from the transport.
func (s *Store) UpdatePosition(ctx context.Context, ownerID int64, lat, lon float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE live_tracks SET lat = ?, lon = ?, last_update_at = ? WHERE owner_id = ?`),
		lat, lon, at.Unix(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("update live position: %w", err)
	}
	return nil
}

// StopLive removes the owner's live track. Safe to call when none exists.
func (s *Store) StopLive(ctx context.Context, ownerID int64) error {
	if _, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM live_tracks WHERE owner_id = ?`), ownerID,
	); err != nil {
		return fmt.Errorf("stop live track: %w", err)
	}
	return nil
}

// PurgeExpired deletes every live track whose expiry has passed and
// returns the number removed. Designed for a recurring timer so stale
// markers vanish from the map even without new activity.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM live_tracks WHERE live_until < ?`), now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge live tracks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListLiveActive returns live tracks that have not expired, most recently
// updated first.
func (s *Store) ListLiveActive(ctx context.Context, now time.Time) ([]event.LiveTrack, error) {
	query := s.rebind(`
	SELECT id, owner_id, contact, lat, lon, started_at, live_until, last_update_at
	FROM live_tracks
	WHERE live_until >= ?
	ORDER BY last_update_at DESC, id DESC
	`)

	rows, err := s.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("query live tracks: %w", err)
	}
	defer rows.Close()

	items := make([]event.LiveTrack, 0, 16)
	for rows.Next() {
		var t event.LiveTrack
		var contact sql.NullString
		if err := rows.Scan(&t.ID, &t.OwnerID, &contact, &t.Lat, &t.Lon, &t.StartedAt, &t.LiveUntil, &t.LastUpdateAt); err != nil {
			return nil, fmt.Errorf("scan live track: %w", err)
		}
		if contact.Valid {
			t.Contact = &contact.String
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
