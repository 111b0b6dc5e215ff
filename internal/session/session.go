// Package session holds per-reporter intake state: the active report
// mode, the last known location, and the pending photo event. It is an
// explicit store passed through the intake pipeline rather than a
// package-level cache, so intake stays testable and restarts are cheap.
package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long idle session state is retained.
const DefaultTTL = 20 * time.Minute

// Mode constants for State.Mode.
const (
	ModeNone       = ""
	ModeReportFire = "report_fire"
)

// State is one reporter's transient intake context.
type State struct {
	Mode      string `json:"mode,omitempty"`
	ModeSetAt int64  `json:"mode_set_at,omitempty"`

	LastLat   float64 `json:"last_lat,omitempty"`
	LastLon   float64 `json:"last_lon,omitempty"`
	LastLocAt int64   `json:"last_loc_at,omitempty"` // 0 = no known location

	// PendingFireID is the photo-only fire event awaiting more photos
	// or coordinates.
	PendingFireID    int64 `json:"pending_fire_id,omitempty"`
	PendingFireSetAt int64 `json:"pending_fire_set_at,omitempty"`
}

// FireModeActive reports whether fire-report mode is set and fresh.
func (s *State) FireModeActive(now time.Time, window time.Duration) bool {
	return s.Mode == ModeReportFire && now.Unix()-s.ModeSetAt < int64(window.Seconds())
}

// RecentLocation returns the last known location if it is fresh enough.
func (s *State) RecentLocation(now time.Time, window time.Duration) (lat, lon float64, ok bool) {
	if s.LastLocAt == 0 || now.Unix()-s.LastLocAt >= int64(window.Seconds()) {
		return 0, 0, false
	}
	return s.LastLat, s.LastLon, true
}

// Store is the session state backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the state for a reporter. Missing or expired state
	// returns a zero State and found=false.
	Get(ctx context.Context, userID int64) (State, bool, error)
	// Put stores the state, refreshing its TTL.
	Put(ctx context.Context, userID int64, st State) error
	// Delete removes the state. Safe when absent.
	Delete(ctx context.Context, userID int64) error
}

// memoryStore is the default in-process backend.
type memoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// NewMemory returns an in-memory session store with the given TTL.
func NewMemory(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryStore{ttl: ttl, entries: make(map[int64]memoryEntry)}
}

func (m *memoryStore) Get(ctx context.Context, userID int64) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return State{}, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, userID)
		return State{}, false, nil
	}
	return e.state, true, nil
}

func (m *memoryStore) Put(ctx context.Context, userID int64, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = memoryEntry{state: st, expiresAt: time.Now().Add(m.ttl)}

	// Opportunistic pruning keeps the map bounded without a janitor
	// goroutine.
	if len(m.entries) > 1024 {
		now := time.Now()
		for id, e := range m.entries {
			if now.After(e.expiresAt) {
				delete(m.entries, id)
			}
		}
	}
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
