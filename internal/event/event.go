// Package event provides the shared domain model for Firewatch.
// This package is used by api, intake, geo, and store packages.
package event

import "time"

// Event kind constants.
const (
	KindVolunteer = "volunteer"
	KindFire      = "fire"
)

// Event lifecycle status constants.
const (
	StatusActive  = "active"
	StatusStopped = "stopped"
	StatusDeleted = "deleted"
)

// Event represents a persisted point report (volunteer presence or fire
// sighting). This is the domain model shared across packages, independent
// of storage implementation. Lat/Lon are nil until coordinates are known;
// an event with coordinates always has both.
type Event struct {
	ID         int64    `json:"id"`
	Ts         int64    `json:"ts"`
	Kind       string   `json:"kind"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	OwnerID    *int64   `json:"owner_id,omitempty"`
	GroupID    *int64   `json:"group_id,omitempty"` // reserved
	Text       *string  `json:"text,omitempty"`
	PhotoRef   *string  `json:"photo_ref,omitempty"`
	Status     string   `json:"status"`
	Contact    *string  `json:"contact,omitempty"`
	PhotoCount int      `json:"photo_count"`
}

// HasCoords reports whether the event has resolved coordinates.
func (e *Event) HasCoords() bool {
	return e.Lat != nil && e.Lon != nil
}

// Photo is a file reference attached to an event. Its lifetime is bound
// to the owning event (cascade on hard delete).
type Photo struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	FileRef   string `json:"file_ref"`
	CreatedAt int64  `json:"created_at"`
}

// LiveTrack is an ephemeral, continuously-updated position stream with a
// hard expiry. One row per owner; position updates overwrite in place.
type LiveTrack struct {
	ID           int64   `json:"id"`
	OwnerID      int64   `json:"owner_id"`
	Contact      *string `json:"contact,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	StartedAt    int64   `json:"started_at"`
	LiveUntil    int64   `json:"live_until"`
	LastUpdateAt int64   `json:"last_update_at"`
}

// Active reports whether the track is still live at the given time.
func (t *LiveTrack) Active(now time.Time) bool {
	return t.LiveUntil >= now.Unix()
}

// ValidKind reports whether k is a known report kind.
func ValidKind(k string) bool {
	return k == KindVolunteer || k == KindFire
}

// StringPtr returns a pointer to the given string.
// Useful for setting optional fields.
func StringPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(v int64) *int64 { return &v }

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(v float64) *float64 { return &v }
