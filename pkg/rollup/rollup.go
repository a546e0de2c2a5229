// Package rollup aggregates fine-grained samples into the coarser
// granularity tiers the chart API serves for long time windows, and enforces
// retention on the finer tiers once their data is represented upstream.
//
// Raw samples arrive every few seconds; keeping them forever is pointless
// because no chart window longer than a couple of days is drawn at raw
// resolution anyway. Each run averages raw -> hourly -> daily -> monthly and
// then deletes expired raw and hourly data.
package rollup

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pulseboard/pulseboard/pkg/chartdata"
	"github.com/pulseboard/pulseboard/pkg/storage"
)

// Lookback windows per target tier: how far back a run re-aggregates.
// Each covers a couple of target buckets so late samples still land.
const (
	hourlyLookback  = 3 * time.Hour
	dailyLookback   = 48 * time.Hour
	monthlyLookback = 62 * 24 * time.Hour
)

// Retention per tier. Monthly aggregates are kept forever.
const (
	RawRetention    = 48 * time.Hour
	HourlyRetention = 90 * 24 * time.Hour
	DailyRetention  = 2 * 365 * 24 * time.Hour
)

// Engine computes rollups against a sample store.
type Engine struct {
	storage storage.Storage
}

// New creates a rollup engine.
func New(store storage.Storage) *Engine {
	return &Engine{storage: store}
}

// Run performs one full pass: every tier rolls up into the next coarser one,
// then retention cleanup removes expired fine-grained data.
func (e *Engine) Run(ctx context.Context) error {
	now := time.Now().UTC()

	for _, from := range []storage.Granularity{storage.Raw, storage.Hourly, storage.Daily} {
		if err := e.RollUp(ctx, from, now); err != nil {
			return fmt.Errorf("%s rollup failed: %w", from.Coarser(), err)
		}
	}

	if err := e.Cleanup(ctx, now); err != nil {
		return fmt.Errorf("retention cleanup failed: %w", err)
	}
	return nil
}

// RollUp averages one tier's samples into the next coarser tier's buckets.
// Re-running over the same window is idempotent on the badger backend since
// a bucket always maps to the same key.
func (e *Engine) RollUp(ctx context.Context, from storage.Granularity, now time.Time) error {
	to := from.Coarser()
	if to == "" {
		return fmt.Errorf("no coarser tier above %s", from)
	}

	metrics, err := e.storage.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list metrics: %w", err)
	}

	start := now.Add(-lookback(to))
	var out []storage.Sample

	for _, metric := range metrics {
		samples, err := e.storage.Query(ctx, storage.QueryRequest{
			Metric:      metric,
			Granularity: from,
			Start:       start,
			End:         now,
		})
		if err != nil {
			return fmt.Errorf("failed to query %s samples for %s: %w", from, metric, err)
		}

		type bucketKey struct {
			series string
			stamp  string
		}
		type bucket struct {
			sum   float64
			count int
		}
		buckets := make(map[bucketKey]*bucket)

		for _, smp := range samples {
			ms := chartdata.NormalizeTimestamp(smp.Timestamp)
			if math.IsNaN(ms) {
				continue
			}
			stamp := to.Format(to.Truncate(time.UnixMilli(int64(ms))))

			key := bucketKey{series: smp.Series, stamp: stamp}
			b, ok := buckets[key]
			if !ok {
				b = &bucket{}
				buckets[key] = b
			}
			b.sum += smp.Value
			b.count++
		}

		for key, b := range buckets {
			out = append(out, storage.Sample{
				Metric:      metric,
				Series:      key.series,
				Granularity: to,
				Timestamp:   key.stamp,
				Value:       b.sum / float64(b.count),
			})
		}
	}

	if len(out) == 0 {
		return nil
	}
	if err := e.storage.Append(ctx, out); err != nil {
		return fmt.Errorf("failed to write %s aggregates: %w", to, err)
	}
	return nil
}

// Cleanup deletes fine-grained samples past their retention window. Coarser
// tiers already represent that data.
func (e *Engine) Cleanup(ctx context.Context, now time.Time) error {
	if err := e.storage.Delete(ctx, storage.Raw, now.Add(-RawRetention)); err != nil {
		return fmt.Errorf("failed to delete expired raw samples: %w", err)
	}
	if err := e.storage.Delete(ctx, storage.Hourly, now.Add(-HourlyRetention)); err != nil {
		return fmt.Errorf("failed to delete expired hourly samples: %w", err)
	}
	if err := e.storage.Delete(ctx, storage.Daily, now.Add(-DailyRetention)); err != nil {
		return fmt.Errorf("failed to delete expired daily samples: %w", err)
	}
	return nil
}

func lookback(to storage.Granularity) time.Duration {
	switch to {
	case storage.Daily:
		return dailyLookback
	case storage.Monthly:
		return monthlyLookback
	}
	return hourlyLookback
}
