/*
Package storage provides the pluggable sample store behind the chart API.

# Data model

A Sample is one collected or rolled-up telemetry point:

	type Sample struct {
	    Metric      string      // e.g. "cpu.core"
	    Series      string      // e.g. "core3" (empty for single-series metrics)
	    Granularity Granularity // raw | hourly | daily | monthly
	    Timestamp   string      // encoding owned by the granularity tier
	    Value       float64
	}

Each granularity tier owns its timestamp string encoding: raw samples carry
full RFC 3339 UTC instants, rollup tiers carry the naive truncated forms
("2024-01-12 10:00", "2024-01-12", "2024-01") that the chart pipeline's
timestamp normalizer resolves back to UTC instants (see pkg/chartdata).

# Backends

All backends implement the Storage interface:

  - memory: slice-backed, for tests and development (fast, no disk I/O)
  - badger: BadgerDB LSM tree with Snappy compression, for production

Keys in the badger backend embed the normalized epoch-millisecond timestamp,
so range scans over a series are chronological by construction. Samples
whose timestamp cannot be normalized are skipped at write time: one bad
point must not abort a batch.
*/
package storage
