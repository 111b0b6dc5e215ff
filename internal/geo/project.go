package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/adriatica/firewatch/internal/event"
)

// EventSource is the slice of the event store the projector reads.
type EventSource interface {
	ListActive(ctx context.Context) ([]event.Event, error)
}

// LiveSource is the slice of the live track store the projector reads.
type LiveSource interface {
	ListLiveActive(ctx context.Context, now time.Time) ([]event.LiveTrack, error)
}

// Projector merges persisted events and active live tracks into one
// FeatureCollection for map rendering. It is cheap enough to run on
// every client poll.
type Projector struct {
	Events EventSource
	Live   LiveSource
}

// KindLive is the synthetic kind used for live track features.
const KindLive = "live"

// Project returns the merged snapshot at the given time. Rows without
// resolved coordinates are excluded. Events come first, then live
// tracks; each source is most-recent-first.
func (p *Projector) Project(ctx context.Context, now time.Time) (*FeatureCollection, error) {
	fc := NewFeatureCollection()

	events, err := p.Events.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i := range events {
		e := &events[i]
		if !e.HasCoords() {
			continue
		}
		props := map[string]any{
			"id":     e.ID,
			"kind":   e.Kind,
			"ts":     e.Ts,
			"status": e.Status,
			"photos": e.PhotoCount,
		}
		if e.OwnerID != nil {
			props["owner_id"] = *e.OwnerID
		}
		if e.Contact != nil {
			props["contact"] = *e.Contact
		}
		if e.Text != nil {
			props["text"] = *e.Text
		}
		if e.PhotoRef != nil {
			props["photo_ref"] = *e.PhotoRef
		}
		fc.Features = append(fc.Features, NewPointFeature(*e.Lat, *e.Lon, props))
	}

	tracks, err := p.Live.ListLiveActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list live tracks: %w", err)
	}
	for i := range tracks {
		t := &tracks[i]
		// Negated owner id keeps live features out of the event id
		// namespace on the client.
		props := map[string]any{
			"id":         -t.OwnerID,
			"kind":       KindLive,
			"ts":         t.LastUpdateAt,
			"live_until": t.LiveUntil,
		}
		if t.Contact != nil {
			props["contact"] = *t.Contact
		}
		fc.Features = append(fc.Features, NewPointFeature(t.Lat, t.Lon, props))
	}

	return fc, nil
}
