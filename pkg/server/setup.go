// Package server wires storage, the collector, the rollup engine and the
// chart API into one HTTP service, and runs the background loops that keep
// it fed and trimmed.
package server

import (
	"log"
	"os"
	"strconv"

	"github.com/pulseboard/pulseboard/pkg/chart"
	"github.com/pulseboard/pulseboard/pkg/collector"
	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/rollup"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
	"github.com/pulseboard/pulseboard/pkg/storage"
	"github.com/pulseboard/pulseboard/pkg/storage/badger"
)

// Config holds server configuration.
type Config struct {
	MaxStorageGB int64
	MaxMemoryMB  int64
	DataDir      string
	Port         string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	maxStorageGB := getEnvInt64("PULSEBOARD_MAX_STORAGE_GB", config.DefaultMaxStorageGB)
	maxMemoryMB := getEnvInt64("PULSEBOARD_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)
	port := getPort()

	dataDir := os.Getenv("PULSEBOARD_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data/pulseboard"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	return Config{
		MaxStorageGB: maxStorageGB,
		MaxMemoryMB:  maxMemoryMB,
		DataDir:      dataDir,
		Port:         port,
	}
}

// InitializeStorage opens the BadgerDB sample store.
func InitializeStorage(cfg Config) (storage.Storage, error) {
	log.Println("Initializing BadgerDB storage with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return store, nil
}

// InitializeHandlers creates the chart handler, the live hub and the
// collector that feeds them.
func InitializeHandlers(store storage.Storage) (*chart.Handler, *chart.LiveHub, *collector.Sampler) {
	chartHandler := chart.NewHandler(store)
	log.Println("Chart handler created")

	hub := chart.NewLiveHub()
	log.Println("WebSocket hub created for live updates")

	sampler := collector.New()
	log.Printf("System collector ready (samples every %v)", config.CollectInterval)

	return chartHandler, hub, sampler
}

// InitializeRollup creates the rollup engine with health monitoring.
func InitializeRollup(store storage.Storage) (*rollup.Engine, *monitor.TaskMonitor) {
	engine := rollup.New(store)
	rollupMonitor := monitor.NewTaskMonitor("rollup", 2*config.RollupInterval)
	log.Printf("Rollup engine ready (runs every %v)", config.RollupInterval)
	return engine, rollupMonitor
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from PORT environment variable or returns default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
