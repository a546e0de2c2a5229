package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulseboard/pulseboard/pkg/chart"
	"github.com/pulseboard/pulseboard/pkg/httpx"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
)

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string             `json:"status"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Collector monitor.TaskStatus `json:"collector"`
	Rollup    monitor.TaskStatus `json:"rollup"`
}

// handleHealth returns service health. The collector going quiet or the
// rollup job failing repeatedly degrades the service without taking the
// chart API down.
func handleHealth(collectorMonitor, rollupMonitor *monitor.TaskMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !collectorMonitor.IsHealthy() || !rollupMonitor.IsHealthy() {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    overallStatus,
			Version:   "1.0.0",
			Uptime:    time.Since(startTime).String(),
			Collector: collectorMonitor.Status(),
			Rollup:    rollupMonitor.Status(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current on-disk usage.
func handleStorageUsage(monitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := monitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		usage := StorageUsage{
			UsedBytes: usedBytes,
			MaxBytes:  monitor.GetLimit(),
		}

		httpx.RespondJSON(w, http.StatusOK, usage)
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	chartHandler *chart.Handler,
	hub *chart.LiveHub,
	storageMonitor *monitor.StorageMonitor,
	collectorMonitor *monitor.TaskMonitor,
	rollupMonitor *monitor.TaskMonitor,
	port string,
) {
	router.Use(corsMiddleware(port))

	api := router.PathPrefix("/v1").Subrouter()

	// Chart data
	api.HandleFunc("/charts/{metric}", chartHandler.HandleChart).Methods("GET")
	api.HandleFunc("/metrics", chartHandler.HandleMetricsList).Methods("GET")
	api.HandleFunc("/stats", chartHandler.HandleStats).Methods("GET")

	// Operational endpoints
	api.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	api.HandleFunc("/health", handleHealth(collectorMonitor, rollupMonitor)).Methods("GET")

	// Live updates
	api.HandleFunc("/live", chartHandler.HandleLive(hub)).Methods("GET")

	// Backup
	api.HandleFunc("/export", chartHandler.HandleExport).Methods("GET")

	// Root path lists the API surface for humans poking around with curl.
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"service": "pulseboard",
			"endpoints": []string{
				"/v1/charts/{metric}",
				"/v1/metrics",
				"/v1/stats",
				"/v1/storage",
				"/v1/health",
				"/v1/live",
				"/v1/export",
			},
		})
	}).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
