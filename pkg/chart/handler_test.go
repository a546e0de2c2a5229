package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/pkg/storage"
	"github.com/pulseboard/pulseboard/pkg/storage/memory"
)

func newTestRouter(t *testing.T) (*mux.Router, *memory.Storage) {
	t.Helper()

	store := memory.New()
	h := NewHandler(store)

	r := mux.NewRouter()
	r.HandleFunc("/v1/charts/{metric}", h.HandleChart).Methods(http.MethodGet)
	r.HandleFunc("/v1/metrics", h.HandleMetricsList).Methods(http.MethodGet)
	r.HandleFunc("/v1/stats", h.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/export", h.HandleExport).Methods(http.MethodGet)
	return r, store
}

// seedSeries writes count raw samples per series, one per second, ending now.
func seedSeries(t *testing.T, store *memory.Storage, metric string, series []string, count int) {
	t.Helper()

	base := time.Now().UTC().Add(-time.Duration(count) * time.Second)
	var samples []storage.Sample
	for _, name := range series {
		for i := 0; i < count; i++ {
			samples = append(samples, storage.Sample{
				Metric:      metric,
				Series:      name,
				Granularity: storage.Raw,
				Timestamp:   base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
				Value:       float64(i % 50),
			})
		}
	}
	require.NoError(t, store.Append(context.Background(), samples))
}

func getChart(t *testing.T, router *mux.Router, url string) (*httptest.ResponseRecorder, ChartResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp ChartResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHandleChart_SingleSeries(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "cpu.total", []string{""}, 600)

	rec, resp := getChart(t, router, "/v1/charts/cpu.total?points=100")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, "cpu.total", resp.Metric)
	require.Equal(t, storage.Raw, resp.Granularity)
	require.Len(t, resp.Series, 1)

	// Unnamed series are labelled with the metric itself.
	require.Equal(t, "cpu.total", resp.Series[0].Name)
	require.Len(t, resp.Series[0].Points, 100)

	require.NotNil(t, resp.AxisMax)
	require.GreaterOrEqual(t, *resp.AxisMax, 49*1.1)
}

func TestHandleChart_SharedAxisAcrossSeries(t *testing.T) {
	router, store := newTestRouter(t)

	now := time.Now().UTC()
	require.NoError(t, store.Append(context.Background(), []storage.Sample{
		{Metric: "net.tcp_states", Series: "ESTABLISHED", Granularity: storage.Raw, Timestamp: now.Add(-2 * time.Minute).Format(time.RFC3339), Value: 40},
		{Metric: "net.tcp_states", Series: "ESTABLISHED", Granularity: storage.Raw, Timestamp: now.Add(-1 * time.Minute).Format(time.RFC3339), Value: 45},
		{Metric: "net.tcp_states", Series: "TIME_WAIT", Granularity: storage.Raw, Timestamp: now.Add(-2 * time.Minute).Format(time.RFC3339), Value: 3},
		{Metric: "net.tcp_states", Series: "TIME_WAIT", Granularity: storage.Raw, Timestamp: now.Add(-1 * time.Minute).Format(time.RFC3339), Value: 2},
	}))

	rec, resp := getChart(t, router, "/v1/charts/net.tcp_states")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Series, 2)

	// One ceiling serves both series; it covers the tallest of them.
	// 45 * 1.1 = 49.5, rounded up to one significant digit.
	require.NotNil(t, resp.AxisMax)
	require.Equal(t, 50.0, *resp.AxisMax)

	require.NotEqual(t, resp.Series[0].Color, resp.Series[1].Color)
}

func TestHandleChart_UnknownMetric(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := getChart(t, router, "/v1/charts/no.such.metric")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChart_BadParams(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "cpu.total", []string{""}, 10)

	cases := []string{
		"/v1/charts/cpu.total?granularity=weekly",
		"/v1/charts/cpu.total?smoothing=1.5",
		"/v1/charts/cpu.total?smoothing=-0.1",
		"/v1/charts/cpu.total?points=abc",
		"/v1/charts/cpu.total?start=not-a-time",
		fmt.Sprintf("/v1/charts/cpu.total?start=%s&end=%s",
			time.Now().Format(time.RFC3339),
			time.Now().Add(-time.Hour).Format(time.RFC3339)),
	}
	for _, url := range cases {
		rec, _ := getChart(t, router, url)
		require.Equal(t, http.StatusBadRequest, rec.Code, "url %s", url)
	}
}

func TestHandleChart_SmoothingStaysInRange(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "mem.used_percent", []string{""}, 200)

	rec, resp := getChart(t, router, "/v1/charts/mem.used_percent?smoothing=0.5&points=50")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Series[0].Points, 50)

	for _, p := range resp.Series[0].Points {
		require.GreaterOrEqual(t, p.V, 0.0)
		require.LessOrEqual(t, p.V, 49.0)
	}
}

func TestHandleChart_PointsCapped(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "cpu.total", []string{""}, 50)

	// Requesting far more points than exist returns everything unchanged.
	rec, resp := getChart(t, router, "/v1/charts/cpu.total?points=100000")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Series[0].Points, 50)
}

func TestHandleMetricsList(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "cpu.total", []string{""}, 5)
	seedSeries(t, store, "mem.used_percent", []string{""}, 5)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Metrics []string `json:"metrics"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	require.Equal(t, []string{"cpu.total", "mem.used_percent"}, body.Metrics)
}

func TestHandleStats(t *testing.T) {
	router, store := newTestRouter(t)
	seedSeries(t, store, "cpu.total", []string{""}, 5)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats storage.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, uint64(5), stats.TotalSamples)
}
