package storage

import (
	"context"
	"time"
)

// Sample is one telemetry point as the collector or rollup job produced it.
// Timestamp stays a string end to end; only the chart pipeline and the
// storage keys normalize it to a numeric instant.
type Sample struct {
	Metric      string      `json:"metric"`
	Series      string      `json:"series,omitempty"`
	Granularity Granularity `json:"granularity"`
	Timestamp   string      `json:"timestamp"`
	Value       float64     `json:"value"`
}

// Storage defines the interface for sample store backends.
// Implementations: memory (testing/dev), badger (production).
type Storage interface {
	// Append stores samples. Samples with unparseable timestamps are
	// skipped, not errors.
	Append(ctx context.Context, samples []Sample) error

	// Query retrieves samples for one metric within a time range, in
	// chronological order.
	Query(ctx context.Context, req QueryRequest) ([]Sample, error)

	// Metrics lists known metric names.
	Metrics(ctx context.Context) ([]string, error)

	// SeriesNames lists the series recorded under a metric, sorted.
	SeriesNames(ctx context.Context, metric string) ([]string, error)

	// Delete removes samples of one granularity older than the given time.
	Delete(ctx context.Context, g Granularity, before time.Time) error

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage.
	Close() error
}

// QueryRequest specifies which samples to retrieve.
type QueryRequest struct {
	Metric      string
	Series      string // empty = all series of the metric
	Granularity Granularity

	Start time.Time
	End   time.Time

	// Limit caps the number of results (0 = no limit).
	Limit int
}

// Stats provides storage health and usage info.
type Stats struct {
	TotalSamples uint64    `json:"total_samples"`
	TotalSeries  uint64    `json:"total_series"`
	SizeBytes    uint64    `json:"size_bytes"`
	OldestSample time.Time `json:"oldest_sample"`
	NewestSample time.Time `json:"newest_sample"`
}
