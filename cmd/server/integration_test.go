package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/pkg/chart"
	"github.com/pulseboard/pulseboard/pkg/rollup"
	"github.com/pulseboard/pulseboard/pkg/server"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
	"github.com/pulseboard/pulseboard/pkg/storage"
	"github.com/pulseboard/pulseboard/pkg/storage/memory"
)

func setupTestRouter(t *testing.T, store storage.Storage) *mux.Router {
	t.Helper()

	chartHandler := chart.NewHandler(store)
	hub := chart.NewLiveHub()
	storageMonitor := monitor.NewStorageMonitor(t.TempDir(), 1<<30)
	collectorMonitor := monitor.NewTaskMonitor("collector", time.Minute)
	rollupMonitor := monitor.NewTaskMonitor("rollup", 2*time.Hour)

	router := mux.NewRouter()
	server.SetupRoutes(router, chartHandler, hub, storageMonitor, collectorMonitor, rollupMonitor, "8080")
	return router
}

// TestE2E_StoreAndChart exercises the full path from stored samples to a
// chart response.
func TestE2E_StoreAndChart(t *testing.T) {
	store := memory.New()
	defer store.Close()
	router := setupTestRouter(t, store)

	base := time.Now().UTC().Add(-30 * time.Minute)
	var samples []storage.Sample
	for i := 0; i < 1800; i++ {
		samples = append(samples, storage.Sample{
			Metric:      "cpu.total",
			Granularity: storage.Raw,
			Timestamp:   base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			Value:       float64(20 + i%60),
		})
	}
	require.NoError(t, store.Append(context.Background(), samples))

	req := httptest.NewRequest(http.MethodGet, "/v1/charts/cpu.total?points=200&smoothing=0.3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chart.ChartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "cpu.total", resp.Metric)
	require.Len(t, resp.Series, 1)
	require.Len(t, resp.Series[0].Points, 200)
	require.NotNil(t, resp.AxisMax)

	// Values are percentages in [20, 79]; the padded ceiling lands above
	// the tallest smoothed point but within an order of magnitude.
	require.Greater(t, *resp.AxisMax, 20.0)
	require.LessOrEqual(t, *resp.AxisMax, 100.0)
}

// TestE2E_RollupThenQueryHourly rolls raw samples into the hourly tier and
// charts that tier through the API.
func TestE2E_RollupThenQueryHourly(t *testing.T) {
	store := memory.New()
	defer store.Close()
	router := setupTestRouter(t, store)

	bucket := time.Now().UTC().Add(-time.Hour).Truncate(time.Hour)
	require.NoError(t, store.Append(context.Background(), []storage.Sample{
		{Metric: "mem.used_percent", Granularity: storage.Raw, Timestamp: bucket.Add(10 * time.Minute).Format(time.RFC3339), Value: 40},
		{Metric: "mem.used_percent", Granularity: storage.Raw, Timestamp: bucket.Add(20 * time.Minute).Format(time.RFC3339), Value: 60},
	}))

	engine := rollup.New(store)
	require.NoError(t, engine.RollUp(context.Background(), storage.Raw, time.Now().UTC()))

	start := bucket.Add(-time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, "/v1/charts/mem.used_percent?granularity=hourly&start="+start, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chart.ChartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, storage.Hourly, resp.Granularity)
	require.Len(t, resp.Series, 1)
	require.Len(t, resp.Series[0].Points, 1)
	require.Equal(t, 50.0, resp.Series[0].Points[0].V)
}

// TestE2E_HealthAndStats checks the operational endpoints respond.
func TestE2E_HealthAndStats(t *testing.T) {
	store := memory.New()
	defer store.Close()
	router := setupTestRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	// Degraded until the background loops record a success.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, store.Append(context.Background(), []storage.Sample{
		{Metric: "cpu.total", Granularity: storage.Raw, Timestamp: time.Now().UTC().Format(time.RFC3339), Value: 5},
	}))

	req = httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, uint64(1), stats.TotalSamples)
}
