package config

import "time"

// Server defaults
const (
	DefaultPort         = "8080"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
)

// Collection loop
const (
	CollectInterval = 5 * time.Second
	CollectTimeout  = 3 * time.Second
)

// Rollup scheduling
const (
	RollupInterval   = 1 * time.Hour
	BadgerGCInterval = 10 * time.Minute
)

// Chart API defaults and limits
const (
	ChartDefaultWindow  = 1 * time.Hour
	ChartMaxWindow      = 2 * 365 * 24 * time.Hour
	ChartDefaultPoints  = 300
	ChartMaxPoints      = 2000
	ChartQueryTimeout   = 10 * time.Second
	MetricsListTimeout  = 5 * time.Second
	DefaultExportWindow = 24 * time.Hour
	ExportTimeout       = 30 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSPingInterval    = 30 * time.Second
	WSReadDeadline    = 60 * time.Second
)
