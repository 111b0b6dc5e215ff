// Package api provides the public HTTP surface: map pages, GeoJSON
// feeds, the Telegram webhook, signed deletion endpoints, and ops
// endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/event"
	"github.com/adriatica/firewatch/internal/geo"
	"github.com/adriatica/firewatch/internal/telegram"
)

// Projection produces the merged map layer.
type Projection interface {
	Project(ctx context.Context, now time.Time) (*geo.FeatureCollection, error)
}

// HotspotSource serves the cached satellite hotspot layer.
type HotspotSource interface {
	Snapshot() (*geo.FeatureCollection, time.Time)
}

// FileSource resolves and downloads Telegram photo files.
type FileSource interface {
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, string, error)
}

// OwnerStore is the slice of the store the owner endpoints mutate.
type OwnerStore interface {
	DeleteByOwner(ctx context.Context, eventID, ownerID int64) (bool, error)
	StopByOwner(ctx context.Context, eventID, ownerID int64) (bool, error)
	StopLive(ctx context.Context, ownerID int64) error
}

// Exporter lists events for the admin export.
type Exporter interface {
	ListActive(ctx context.Context) ([]event.Event, error)
}

// WebhookSink consumes decoded Telegram updates.
type WebhookSink interface {
	Handle(ctx context.Context, upd *telegram.Update) error
}

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	log        *zap.Logger

	projection Projection
	hotspots   HotspotSource
	files      FileSource
	owners     OwnerStore
	exporter   Exporter

	webhook      WebhookSink
	webhookToken string

	secret         []byte
	allowedOrigins []string

	centerLat  float64
	centerLon  float64
	centerZoom int

	limiter *RateLimiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHotspots enables the hotspot layer endpoint.
func WithHotspots(src HotspotSource) ServerOption {
	return func(s *Server) { s.hotspots = src }
}

// WithFileSource enables the photo proxy.
func WithFileSource(src FileSource) ServerOption {
	return func(s *Server) { s.files = src }
}

// WithWebhook enables the Telegram webhook route under the given path
// token.
func WithWebhook(sink WebhookSink, token string) ServerOption {
	return func(s *Server) {
		if token != "" {
			s.webhook = sink
			s.webhookToken = token
		}
	}
}

// WithExporter enables the admin export endpoint.
func WithExporter(e Exporter) ServerOption {
	return func(s *Server) { s.exporter = e }
}

// WithCORS sets the allowed cross-origin list.
func WithCORS(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithMapCenter sets the default map viewport.
func WithMapCenter(lat, lon float64, zoom int) ServerOption {
	return func(s *Server) {
		s.centerLat, s.centerLon, s.centerZoom = lat, lon, zoom
	}
}

// WithRateLimiter overrides the mutating-endpoint rate limiter.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// NewServer creates the HTTP server with the given dependencies.
func NewServer(addr string, log *zap.Logger, projection Projection, owners OwnerStore, secret []byte, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		log:        log,
		projection: projection,
		owners:     owners,
		secret:     secret,
		centerZoom: 12,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(DefaultRateLimiterConfig())
	}

	s.registerRoutes()

	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = corsMiddleware(s.allowedOrigins)(handler)
	handler = requestLogMiddleware(log)(handler)
	s.httpServer.Handler = handler

	return s
}

// registerRoutes sets up the routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /pick", s.handlePick)
	s.mux.HandleFunc("GET /geojson", s.handleGeoJSON)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	limited := s.limiter.Middleware
	// GET serves the confirmation page for clicked capability links; the
	// mutation itself stays behind DELETE/POST so link prefetchers cannot
	// trigger it.
	s.mux.HandleFunc("GET /event/{id}", s.handleEventPage)
	s.mux.Handle("DELETE /event/{id}", limited(http.HandlerFunc(s.handleDeleteEvent)))
	s.mux.Handle("POST /event/{id}/stop", limited(http.HandlerFunc(s.handleStopEvent)))
	s.mux.Handle("DELETE /live/{uid}", limited(http.HandlerFunc(s.handleStopLive)))

	if s.hotspots != nil {
		s.mux.HandleFunc("GET /hotspots.geojson", s.handleHotspots)
	}
	if s.files != nil {
		s.mux.HandleFunc("GET /photo/{fileID}", s.handlePhoto)
	}
	if s.exporter != nil {
		s.mux.HandleFunc("GET /admin/export", s.handleExport)
	}
	// The webhook is gated by its unguessable path token and all updates
	// come from Telegram's small IP pool, so the per-IP limiter would
	// throttle legitimate traffic during a busy incident window.
	if s.webhook != nil {
		s.mux.HandleFunc("POST /telegram/webhook/{token}", s.handleWebhook)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler exposes the assembled handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
