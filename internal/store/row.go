package store

import (
	"database/sql"
	"fmt"

	"github.com/adriatica/firewatch/internal/event"
)

// eventRow is the internal type representing an events table row.
type eventRow struct {
	ID         int64
	Ts         int64
	Kind       string
	Lat        sql.NullFloat64
	Lon        sql.NullFloat64
	OwnerID    sql.NullInt64
	GroupID    sql.NullInt64
	Text       sql.NullString
	PhotoRef   sql.NullString
	Status     string
	Contact    sql.NullString
	PhotoCount int
}

// toEvent converts a database row to an Event.
func (r *eventRow) toEvent() *event.Event {
	e := &event.Event{
		ID:         r.ID,
		Ts:         r.Ts,
		Kind:       r.Kind,
		Status:     r.Status,
		PhotoCount: r.PhotoCount,
	}
	if r.Lat.Valid {
		e.Lat = &r.Lat.Float64
	}
	if r.Lon.Valid {
		e.Lon = &r.Lon.Float64
	}
	if r.OwnerID.Valid {
		e.OwnerID = &r.OwnerID.Int64
	}
	if r.GroupID.Valid {
		e.GroupID = &r.GroupID.Int64
	}
	if r.Text.Valid {
		e.Text = &r.Text.String
	}
	if r.PhotoRef.Valid && r.PhotoRef.String != "" {
		e.PhotoRef = &r.PhotoRef.String
	}
	if r.Contact.Valid {
		e.Contact = &r.Contact.String
	}
	return e
}

// nullStr converts an optional string to sql.NullString.
func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// nullI64 converts an optional int64 to sql.NullInt64.
func nullI64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// nullF64 converts an optional float64 to sql.NullFloat64.
func nullF64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// validateReport checks that a report is storable. Coordinates may be
// absent entirely (photo-only reports pending attachment) but never
// half-present.
func validateReport(e *event.Event) error {
	if !event.ValidKind(e.Kind) {
		return fmt.Errorf("%w: kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Ts == 0 {
		return fmt.Errorf("%w: ts is required", ErrInvalidEvent)
	}
	if (e.Lat == nil) != (e.Lon == nil) {
		return fmt.Errorf("%w: lat and lon must be set together", ErrInvalidEvent)
	}
	return nil
}
