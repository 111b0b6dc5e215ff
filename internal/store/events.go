package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adriatica/firewatch/internal/event"
)

// maxListRows bounds ListActive so the map projection response stays
// bounded regardless of table growth.
const maxListRows = 5000

// Record inserts a new report and returns its id. Coordinates may be nil
// (photo-only reports pending coordinate attachment).
func (s *Store) Record(ctx context.Context, e *event.Event) (int64, error) {
	if e.Status == "" {
		e.Status = event.StatusActive
	}
	if err := validateReport(e); err != nil {
		return 0, err
	}

	query := s.rebind(`
	INSERT INTO events (ts, kind, lat, lon, owner_id, group_id, text, photo_ref, status, contact)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		e.Ts,
		e.Kind,
		nullF64(e.Lat),
		nullF64(e.Lon),
		nullI64(e.OwnerID),
		nullI64(e.GroupID),
		nullStr(e.Text),
		nullStr(e.PhotoRef),
		e.Status,
		nullStr(e.Contact),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}

	e.ID = id
	return id, nil
}

// AttachPhoto appends a photo reference to an event. One event may carry
// several photos; the projection surfaces the most recent.
func (s *Store) AttachPhoto(ctx context.Context, eventID int64, fileRef string, at int64) error {
	query := s.rebind(`INSERT INTO photos (event_id, file_ref, created_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, eventID, fileRef, at); err != nil {
		return fmt.Errorf("attach photo: %w", err)
	}
	return nil
}

// Photos returns the photos of an event, oldest first.
func (s *Store) Photos(ctx context.Context, eventID int64) ([]event.Photo, error) {
	query := s.rebind(`
	SELECT id, event_id, file_ref, created_at
	FROM photos WHERE event_id = ?
	ORDER BY created_at ASC, id ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []event.Photo
	for rows.Next() {
		var p event.Photo
		if err := rows.Scan(&p.ID, &p.EventID, &p.FileRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return photos, nil
}

// DeleteByOwner removes an event on behalf of its owner. Returns false
// (not an error) when the id is unknown, the owner does not match, or the
// event is already deleted; unauthorized attempts are expected traffic.
// The configured delete mode decides between a status flip and a hard
// delete with photo cascade.
func (s *Store) DeleteByOwner(ctx context.Context, eventID, ownerID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var owner sql.NullInt64
	var status string
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT owner_id, status FROM events WHERE id = ?`), eventID,
	).Scan(&owner, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup event: %w", err)
	}
	if !owner.Valid || owner.Int64 != ownerID || status == event.StatusDeleted {
		return false, nil
	}

	if s.deleteMode == DeleteHard {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM photos WHERE event_id = ?`), eventID); err != nil {
			return false, fmt.Errorf("delete photos: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM events WHERE id = ?`), eventID); err != nil {
			return false, fmt.Errorf("delete event: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE events SET status = ? WHERE id = ?`),
			event.StatusDeleted, eventID,
		); err != nil {
			return false, fmt.Errorf("mark deleted: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

// StopByOwner flips an active event to stopped. Same capability rules as
// DeleteByOwner; deletion stays terminal.
func (s *Store) StopByOwner(ctx context.Context, eventID, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE events SET status = ? WHERE id = ? AND owner_id = ? AND status = ?`),
		event.StatusStopped, eventID, ownerID, event.StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("stop event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListActive returns all non-deleted events, most recent first, capped at
// maxListRows. Photo count and the latest photo reference are resolved in
// the same query so one event renders as one marker.
func (s *Store) ListActive(ctx context.Context) ([]event.Event, error) {
	query := s.rebind(`
	SELECT e.id, e.ts, e.kind, e.lat, e.lon, e.owner_id, e.group_id, e.text,
	       COALESCE((SELECT p.file_ref FROM photos p WHERE p.event_id = e.id ORDER BY p.created_at DESC, p.id DESC LIMIT 1), e.photo_ref, ''),
	       e.status, e.contact,
	       (SELECT COUNT(1) FROM photos p WHERE p.event_id = e.id)
	FROM events e
	WHERE e.status <> ?
	ORDER BY e.ts DESC, e.id DESC
	LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, event.StatusDeleted, maxListRows)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	items := make([]event.Event, 0, 64)
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(
			&r.ID, &r.Ts, &r.Kind, &r.Lat, &r.Lon, &r.OwnerID, &r.GroupID,
			&r.Text, &r.PhotoRef, &r.Status, &r.Contact, &r.PhotoCount,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, *r.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// CountEvents returns the total number of event rows (including deleted
// rows in soft-delete mode).
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
