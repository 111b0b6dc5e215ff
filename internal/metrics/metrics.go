// Package metrics defines the Prometheus instrumentation shared across
// intake, stores, and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsRecorded counts persisted point reports by kind.
	ReportsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_reports_recorded_total",
		Help: "Point reports recorded, by kind.",
	}, []string{"kind"})

	// PhotosAttached counts photo references attached to events.
	PhotosAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firewatch_photos_attached_total",
		Help: "Photo references attached to events.",
	})

	// LiveTrackOps counts live track mutations by operation.
	LiveTrackOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_live_track_ops_total",
		Help: "Live track mutations, by operation (start, update, stop).",
	}, []string{"op"})

	// LiveTracksPurged counts rows removed by the purge timer.
	LiveTracksPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firewatch_live_tracks_purged_total",
		Help: "Expired live tracks removed by the purge loop.",
	})

	// Deletions counts owner deletion attempts by outcome.
	Deletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_deletions_total",
		Help: "Owner deletion attempts, by outcome (granted, denied).",
	}, []string{"outcome"})

	// WebhookUpdates counts inbound Telegram updates by handled type.
	WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_webhook_updates_total",
		Help: "Inbound Telegram updates, by type.",
	}, []string{"type"})

	// HotspotFetches counts hotspot feed polls by outcome.
	HotspotFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "firewatch_hotspot_fetches_total",
		Help: "Hotspot feed polls, by outcome (ok, error).",
	}, []string{"outcome"})

	// ProjectedFeatures reports the size of the last map projection.
	ProjectedFeatures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "firewatch_projected_features",
		Help: "Features in the most recent GeoJSON projection.",
	})
)
