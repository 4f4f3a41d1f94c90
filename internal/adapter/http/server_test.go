package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/vigimeteo/meteo-etl/internal/adapter/http"
	"github.com/vigimeteo/meteo-etl/internal/adapter/store"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockStatus struct {
	summaries []store.LocationSummary
	err       error
}

func (m *mockStatus) Summary(_ context.Context) ([]store.LocationSummary, error) {
	return m.summaries, m.err
}

func newTestServer(readyErr error, status *mockStatus) *httpadapter.Server {
	if status == nil {
		status = &mockStatus{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, status, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("first ingest pass not finished"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "first ingest pass not finished", body["error"])
}

func TestStatuszReportsLocations(t *testing.T) {
	status := &mockStatus{
		summaries: []store.LocationSummary{
			{
				Slug:           "paris-france",
				Name:           "Paris",
				Country:        "France",
				HourlyRows:     216,
				DailyRows:      9,
				HistoricalRows: 30,
				UpdatedAt:      time.Date(2024, 5, 15, 10, 16, 2, 0, time.UTC),
			},
		},
	}
	srv := newTestServer(nil, status)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		GeneratedAt string                  `json:"generated_at"`
		Locations   []store.LocationSummary `json:"locations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.GeneratedAt)
	require.Len(t, body.Locations, 1)
	assert.Equal(t, "paris-france", body.Locations[0].Slug)
	assert.Equal(t, 216, body.Locations[0].HourlyRows)
}

func TestStatuszEmptyStore(t *testing.T) {
	srv := newTestServer(nil, &mockStatus{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locations":[]`)
}

func TestStatuszReportsErrors(t *testing.T) {
	srv := newTestServer(nil, &mockStatus{err: fmt.Errorf("database locked")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database locked")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
