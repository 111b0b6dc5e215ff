package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/event"
	"github.com/adriatica/firewatch/internal/geo"
	"github.com/adriatica/firewatch/internal/ownersig"
	"github.com/adriatica/firewatch/internal/telegram"
)

var testSecret = []byte("test-secret")

type fakeProjection struct {
	fc  *geo.FeatureCollection
	err error
}

func (f *fakeProjection) Project(ctx context.Context, now time.Time) (*geo.FeatureCollection, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.fc == nil {
		return geo.NewFeatureCollection(), nil
	}
	return f.fc, nil
}

type fakeOwners struct {
	deleteOK      bool
	stopOK        bool
	deleted       []int64
	stoppedEvents []int64
	stopped       []int64
	deleteErr     error
}

func (f *fakeOwners) DeleteByOwner(ctx context.Context, eventID, ownerID int64) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if f.deleteOK {
		f.deleted = append(f.deleted, eventID)
	}
	return f.deleteOK, nil
}

func (f *fakeOwners) StopByOwner(ctx context.Context, eventID, ownerID int64) (bool, error) {
	if f.stopOK {
		f.stoppedEvents = append(f.stoppedEvents, eventID)
	}
	return f.stopOK, nil
}

func (f *fakeOwners) StopLive(ctx context.Context, ownerID int64) error {
	f.stopped = append(f.stopped, ownerID)
	return nil
}

type fakeFiles struct {
	body        []byte
	contentType string
	err         error
}

func (f *fakeFiles) GetFile(ctx context.Context, fileID string) (telegram.File, error) {
	if f.err != nil {
		return telegram.File{}, f.err
	}
	return telegram.File{FileID: fileID, FilePath: "photos/" + fileID + ".jpg"}, nil
}

func (f *fakeFiles) DownloadFile(ctx context.Context, filePath string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.body, f.contentType, nil
}

type fakeHotspots struct {
	fc        *geo.FeatureCollection
	fetchedAt time.Time
}

func (f *fakeHotspots) Snapshot() (*geo.FeatureCollection, time.Time) {
	if f.fc == nil {
		return geo.NewFeatureCollection(), f.fetchedAt
	}
	return f.fc, f.fetchedAt
}

type fakeExporter struct {
	events []event.Event
}

func (f *fakeExporter) ListActive(ctx context.Context) ([]event.Event, error) {
	return f.events, nil
}

type fakeWebhook struct {
	updates []*telegram.Update
}

func (f *fakeWebhook) Handle(ctx context.Context, upd *telegram.Update) error {
	f.updates = append(f.updates, upd)
	return nil
}

// permissiveLimiter avoids rate limit interference in handler tests.
func permissiveLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10000, Burst: 10000, CleanupInterval: time.Minute})
	t.Cleanup(rl.Stop)
	return rl
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, *fakeOwners) {
	t.Helper()
	owners := &fakeOwners{deleteOK: true, stopOK: true}
	opts = append([]ServerOption{WithRateLimiter(permissiveLimiter(t)), WithMapCenter(42.179, 18.942, 12)}, opts...)
	s := NewServer(":0", zap.NewNop(), &fakeProjection{}, owners, testSecret, opts...)
	return s, owners
}

func doRequest(s *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexPage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "42.179000", "center latitude substituted")
	assert.NotContains(t, rec.Body.String(), "__LAT__")
}

func TestPickPage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/pick?mode=fire&lat=42.2&lon=18.9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pick a point")
}

func TestGeoJSON(t *testing.T) {
	fc := geo.NewFeatureCollection()
	fc.Features = append(fc.Features, geo.NewPointFeature(42.2, 18.9, map[string]any{
		"id": int64(1), "kind": "fire",
	}))
	s, _ := newTestServer(t)
	s.projection = &fakeProjection{fc: fc}

	rec := doRequest(s, http.MethodGet, "/geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)
	assert.Contains(t, rec.Body.String(), "[18.9,42.2]", "coordinates are lon,lat")
}

func TestGeoJSON_ProjectionError(t *testing.T) {
	s, _ := newTestServer(t)
	s.projection = &fakeProjection{err: errors.New("db down")}

	rec := doRequest(s, http.MethodGet, "/geojson", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down", "internal details stay internal")
}

func TestHotspots(t *testing.T) {
	s, _ := newTestServer(t, WithHotspots(&fakeHotspots{fetchedAt: time.Now()}))
	rec := doRequest(s, http.MethodGet, "/hotspots.geojson", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
}

func TestDeleteEvent_AuthMatrix(t *testing.T) {
	goodSig := ownersig.Sign(testSecret, 7)

	cases := []struct {
		name   string
		target string
		status int
	}{
		{"valid", "/event/12?uid=7&sig=" + goodSig, http.StatusOK},
		{"bad signature", "/event/12?uid=7&sig=deadbeef", http.StatusForbidden},
		{"signature for other uid", "/event/12?uid=8&sig=" + goodSig, http.StatusForbidden},
		{"missing uid", "/event/12?sig=" + goodSig, http.StatusForbidden},
		{"bad event id", "/event/nope?uid=7&sig=" + goodSig, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := doRequest(s, http.MethodDelete, tc.target, "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestDeleteEvent_NotOwner(t *testing.T) {
	s, owners := newTestServer(t)
	owners.deleteOK = false

	sig := ownersig.Sign(testSecret, 7)
	rec := doRequest(s, http.MethodDelete, "/event/12?uid=7&sig="+sig, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "valid signature but not the owner")
}

func TestEventPage_ClickedLink(t *testing.T) {
	s, owners := newTestServer(t)

	sig := ownersig.Sign(testSecret, 7)
	rec := doRequest(s, http.MethodGet, "/event/12?uid=7&sig="+sig, "")
	require.Equal(t, http.StatusOK, rec.Code, "clicked delete links must not 405")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Remove report")
	assert.Empty(t, owners.deleted, "GET never mutates")
	assert.Empty(t, owners.stoppedEvents, "GET never mutates")
}

func TestEventPage_BadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/event/12?uid=7&sig=deadbeef", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStopEvent(t *testing.T) {
	s, owners := newTestServer(t)

	sig := ownersig.Sign(testSecret, 7)
	rec := doRequest(s, http.MethodPost, "/event/12/stop?uid=7&sig="+sig, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{12}, owners.stoppedEvents)
	assert.JSONEq(t, `{"status":"stopped"}`, rec.Body.String())
}

func TestStopEvent_NotOwner(t *testing.T) {
	s, owners := newTestServer(t)
	owners.stopOK = false

	sig := ownersig.Sign(testSecret, 7)
	rec := doRequest(s, http.MethodPost, "/event/12/stop?uid=7&sig="+sig, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopEvent_BadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/event/12/stop?uid=7&sig=deadbeef", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStopLive(t *testing.T) {
	s, owners := newTestServer(t)

	sig := ownersig.Sign(testSecret, 7)
	rec := doRequest(s, http.MethodDelete, "/live/7?sig="+sig, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, owners.stopped)

	rec = doRequest(s, http.MethodDelete, "/live/7?sig=bogus", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPhotoProxy(t *testing.T) {
	files := &fakeFiles{body: []byte("jpegbytes"), contentType: "image/jpeg"}
	s, _ := newTestServer(t, WithFileSource(files))

	rec := doRequest(s, http.MethodGet, "/photo/abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpegbytes", rec.Body.String())
}

func TestPhotoProxy_UpstreamFailure(t *testing.T) {
	files := &fakeFiles{err: errors.New("telegram down")}
	s, _ := newTestServer(t, WithFileSource(files))

	rec := doRequest(s, http.MethodGet, "/photo/abc123", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExport(t *testing.T) {
	exporter := &fakeExporter{events: []event.Event{{
		ID: 1, Ts: 1700000000, Kind: event.KindFire, Status: event.StatusActive,
		Lat: event.Float64Ptr(42.2), Lon: event.Float64Ptr(18.9),
	}}}
	s, _ := newTestServer(t, WithExporter(exporter))

	rec := doRequest(s, http.MethodGet, "/admin/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "firewatch-export-")
	assert.NotZero(t, rec.Body.Len())
}

func TestWebhook(t *testing.T) {
	sink := &fakeWebhook{}
	s, _ := newTestServer(t, WithWebhook(sink, "hooktoken"))

	body := `{"update_id":5,"message":{"message_id":1,"chat":{"id":7},"text":"hi"}}`
	rec := doRequest(s, http.MethodPost, "/telegram/webhook/hooktoken", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.updates, 1)
	assert.Equal(t, int64(5), sink.updates[0].UpdateID)
}

func TestWebhook_WrongToken(t *testing.T) {
	sink := &fakeWebhook{}
	s, _ := newTestServer(t, WithWebhook(sink, "hooktoken"))

	rec := doRequest(s, http.MethodPost, "/telegram/webhook/wrong", `{"update_id":5}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, sink.updates)
}

func TestWebhook_NotRateLimited(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	t.Cleanup(rl.Stop)

	sink := &fakeWebhook{}
	owners := &fakeOwners{}
	s := NewServer(":0", zap.NewNop(), &fakeProjection{}, owners, testSecret,
		WithRateLimiter(rl), WithWebhook(sink, "hooktoken"))

	// All updates come from the same Telegram IPs; a burst well past the
	// limiter budget must still be accepted.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook/hooktoken",
			strings.NewReader(fmt.Sprintf(`{"update_id":%d}`, i)))
		req.RemoteAddr = "149.154.167.220:443"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, sink.updates, 5)
}

func TestWebhook_MalformedBody(t *testing.T) {
	sink := &fakeWebhook{}
	s, _ := newTestServer(t, WithWebhook(sink, "hooktoken"))

	rec := doRequest(s, http.MethodPost, "/telegram/webhook/hooktoken", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestID_Header(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestCORS_Allowlist(t *testing.T) {
	s, _ := newTestServer(t, WithCORS([]string{"https://map.example"}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://map.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://map.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per IP")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, fmt.Sprintf("request %d", i))
	}
}
