package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/pkg/chart"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
	"github.com/pulseboard/pulseboard/pkg/storage/memory"
)

func newTestServer(t *testing.T) (*mux.Router, *monitor.TaskMonitor, *monitor.TaskMonitor) {
	t.Helper()

	store := memory.New()
	chartHandler := chart.NewHandler(store)
	hub := chart.NewLiveHub()

	collectorMonitor := monitor.NewTaskMonitor("collector", time.Minute)
	rollupMonitor := monitor.NewTaskMonitor("rollup", 2*time.Hour)
	storageMonitor := monitor.NewStorageMonitor(t.TempDir(), 1<<30)

	router := mux.NewRouter()
	SetupRoutes(router, chartHandler, hub, storageMonitor, collectorMonitor, rollupMonitor, "8080")
	return router, collectorMonitor, rollupMonitor
}

func TestHealth_DegradedUntilFirstSuccess(t *testing.T) {
	router, collectorMonitor, rollupMonitor := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)

	collectorMonitor.RecordSuccess()
	rollupMonitor.RecordSuccess()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "healthy", health.Status)
	require.True(t, health.Collector.Healthy)
	require.True(t, health.Rollup.Healthy)
}

func TestStorageUsageEndpoint(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/storage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var usage StorageUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	require.Equal(t, int64(1<<30), usage.MaxBytes)
	require.GreaterOrEqual(t, usage.UsedBytes, int64(0))
}

func TestRootListsEndpoints(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "pulseboard", body.Service)
	require.Contains(t, body.Endpoints, "/v1/charts/{metric}")
}

func TestCORS_AllowsLocalhostOnly(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
