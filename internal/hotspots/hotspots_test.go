package hotspots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleFeed = `latitude,longitude,bright_ti4,acq_date,acq_time,satellite,confidence,frp
42.1791,18.9425,330.5,2025-08-14,1012,N,h,12.3
42.5000,19.1000,310.2,2025-08-14,1012,N,n,4.1
not-a-number,19.2,300.0,2025-08-14,1012,N,l,1.0
42.6000
`

func TestParseCSV(t *testing.T) {
	fc, skipped, err := ParseCSV(strings.NewReader(sampleFeed))
	require.NoError(t, err)

	assert.Len(t, fc.Features, 2)
	assert.Equal(t, 2, skipped, "malformed rows are skipped")

	first := fc.Features[0]
	assert.Equal(t, "hotspot", first.Properties["kind"])
	assert.Equal(t, "2025-08-14", first.Properties["acq_date"])
	assert.Equal(t, "h", first.Properties["confidence"])
	assert.Equal(t, [2]float64{18.9425, 42.1791}, first.Geometry.Coordinates)
}

func TestParseCSV_MissingColumns(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)
}

func TestFetchOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, zap.NewNop())
	require.NoError(t, f.FetchOnce(context.Background()))

	fc, fetchedAt := f.Snapshot()
	assert.Len(t, fc.Features, 2)
	assert.False(t, fetchedAt.IsZero())
}

func TestFetchOnce_KeepsPreviousSnapshotOnError(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, zap.NewNop())
	require.NoError(t, f.FetchOnce(context.Background()))

	fail = true
	err := f.FetchOnce(context.Background())
	assert.Error(t, err)

	fc, _ := f.Snapshot()
	assert.Len(t, fc.Features, 2, "stale layer keeps serving")
}

func TestSnapshot_NeverNil(t *testing.T) {
	f := NewFetcher("http://unused.invalid", zap.NewNop())
	fc, fetchedAt := f.Snapshot()
	require.NotNil(t, fc)
	assert.Empty(t, fc.Features)
	assert.True(t, fetchedAt.IsZero())
}
