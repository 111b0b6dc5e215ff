// Package hotspots ingests a third-party satellite hotspot feed
// (FIRMS-style CSV) and caches it as a GeoJSON layer for the map.
// Feed failures are recoverable: the previous snapshot keeps serving.
package hotspots

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/geo"
	"github.com/adriatica/firewatch/internal/metrics"
)

// Fetcher polls the feed and holds the latest parsed layer.
type Fetcher struct {
	http *resty.Client
	url  string
	log  *zap.Logger

	mu        sync.RWMutex
	snapshot  *geo.FeatureCollection
	fetchedAt time.Time
}

// NewFetcher creates a hotspot fetcher for the given feed URL.
func NewFetcher(feedURL string, log *zap.Logger) *Fetcher {
	return &Fetcher{
		http: resty.New().
			SetTimeout(20 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
		url:      feedURL,
		log:      log,
		snapshot: geo.NewFeatureCollection(),
	}
}

// Snapshot returns the most recent layer and its fetch time. Never nil.
func (f *Fetcher) Snapshot() (*geo.FeatureCollection, time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot, f.fetchedAt
}

// FetchOnce polls the feed and replaces the cached layer on success.
func (f *Fetcher) FetchOnce(ctx context.Context) error {
	resp, err := f.http.R().SetContext(ctx).Get(f.url)
	if err != nil {
		metrics.HotspotFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch hotspots: %w", err)
	}
	if resp.IsError() {
		metrics.HotspotFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch hotspots: status %d", resp.StatusCode())
	}

	fc, skipped, err := ParseCSV(strings.NewReader(string(resp.Body())))
	if err != nil {
		metrics.HotspotFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("parse hotspots: %w", err)
	}

	f.mu.Lock()
	f.snapshot = fc
	f.fetchedAt = time.Now()
	f.mu.Unlock()

	metrics.HotspotFetches.WithLabelValues("ok").Inc()
	f.log.Info("hotspot layer refreshed",
		zap.Int("features", len(fc.Features)),
		zap.Int("skipped_rows", skipped),
	)
	return nil
}

// Run polls the feed on a ticker until the context is cancelled. The
// first fetch happens immediately.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) {
	if err := f.FetchOnce(ctx); err != nil && ctx.Err() == nil {
		f.log.Warn("initial hotspot fetch failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.FetchOnce(ctx); err != nil && ctx.Err() == nil {
				f.log.Warn("hotspot fetch failed", zap.Error(err))
			}
		}
	}
}

// ParseCSV reads a FIRMS-style CSV (header row with at least latitude
// and longitude columns) into a FeatureCollection. Malformed rows are
// skipped, not fatal; the skipped count is returned for logging.
func ParseCSV(r io.Reader) (*geo.FeatureCollection, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	latIdx, latOK := col["latitude"]
	lonIdx, lonOK := col["longitude"]
	if !latOK || !lonOK {
		return nil, 0, fmt.Errorf("feed has no latitude/longitude columns")
	}

	fc := geo.NewFeatureCollection()
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if latIdx >= len(rec) || lonIdx >= len(rec) {
			skipped++
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}

		props := map[string]any{"kind": "hotspot"}
		for _, name := range []string{"acq_date", "acq_time", "confidence", "frp", "satellite"} {
			if i, ok := col[name]; ok && i < len(rec) && rec[i] != "" {
				props[name] = rec[i]
			}
		}
		fc.Features = append(fc.Features, geo.NewPointFeature(lat, lon, props))
	}

	return fc, skipped, nil
}
