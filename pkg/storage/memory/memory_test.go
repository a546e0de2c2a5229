package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/pkg/storage"
)

func rawSample(metric, series, ts string, v float64) storage.Sample {
	return storage.Sample{
		Metric:      metric,
		Series:      series,
		Granularity: storage.Raw,
		Timestamp:   ts,
		Value:       v,
	}
}

func TestAppendAndQuery_ChronologicalOrder(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	// Appended out of order on purpose.
	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("cpu.total", "", "2024-01-12T10:00:20Z", 3),
		rawSample("cpu.total", "", "2024-01-12T10:00:00Z", 1),
		rawSample("cpu.total", "", "2024-01-12T10:00:10Z", 2),
	}))

	got, err := store.Query(ctx, storage.QueryRequest{
		Metric: "cpu.total",
		Start:  time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []float64{1, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value})
}

func TestAppend_SkipsUnparseableTimestamps(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("mem.used", "", "garbage", 1),
		rawSample("mem.used", "", "2024-01-12T10:00:00Z", 2),
	}))

	got, err := store.Query(ctx, storage.QueryRequest{Metric: "mem.used"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2.0, got[0].Value)
}

func TestQuery_FiltersGranularityAndSeries(t *testing.T) {
	store := New()
	ctx := context.Background()

	hourly := storage.Sample{
		Metric:      "cpu.core",
		Series:      "core0",
		Granularity: storage.Hourly,
		Timestamp:   "2024-01-12 10:00",
		Value:       40,
	}
	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("cpu.core", "core0", "2024-01-12T10:00:00Z", 10),
		rawSample("cpu.core", "core1", "2024-01-12T10:00:00Z", 20),
		hourly,
	}))

	got, err := store.Query(ctx, storage.QueryRequest{Metric: "cpu.core", Series: "core1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 20.0, got[0].Value)

	got, err = store.Query(ctx, storage.QueryRequest{Metric: "cpu.core", Granularity: storage.Hourly})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, hourly, got[0])
}

func TestQuery_Limit(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ts := time.Date(2024, 1, 12, 10, 0, i, 0, time.UTC).Format(time.RFC3339)
		require.NoError(t, store.Append(ctx, []storage.Sample{rawSample("net.rx", "", ts, float64(i))}))
	}

	got, err := store.Query(ctx, storage.QueryRequest{Metric: "net.rx", Limit: 4})
	require.NoError(t, err)
	require.Len(t, got, 4)
	// Limit keeps the earliest points after sorting.
	require.Equal(t, 0.0, got[0].Value)
	require.Equal(t, 3.0, got[3].Value)
}

func TestMetricsAndSeriesNames(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("cpu.core", "core1", "2024-01-12T10:00:00Z", 1),
		rawSample("cpu.core", "core0", "2024-01-12T10:00:00Z", 1),
		rawSample("mem.used", "", "2024-01-12T10:00:00Z", 1),
	}))

	metrics, err := store.Metrics(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"cpu.core", "mem.used"}, metrics)

	series, err := store.SeriesNames(ctx, "cpu.core")
	require.NoError(t, err)
	require.Equal(t, []string{"core0", "core1"}, series)
}

func TestDelete_ScopedToGranularity(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("cpu.total", "", "2024-01-10T00:00:00Z", 1),
		rawSample("cpu.total", "", "2024-01-12T00:00:00Z", 2),
		{Metric: "cpu.total", Granularity: storage.Hourly, Timestamp: "2024-01-10 00:00", Value: 3},
	}))

	cutoff := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Delete(ctx, storage.Raw, cutoff))

	raw, err := store.Query(ctx, storage.QueryRequest{Metric: "cpu.total"})
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, 2.0, raw[0].Value)

	// The hourly tier is untouched.
	hourly, err := store.Query(ctx, storage.QueryRequest{Metric: "cpu.total", Granularity: storage.Hourly})
	require.NoError(t, err)
	require.Len(t, hourly, 1)
}

func TestStats(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []storage.Sample{
		rawSample("cpu.core", "core0", "2024-01-12T10:00:00Z", 1),
		rawSample("cpu.core", "core1", "2024-01-12T11:00:00Z", 1),
	}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.TotalSamples)
	require.Equal(t, uint64(2), stats.TotalSeries)
	require.Equal(t, time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC), stats.OldestSample)
	require.Equal(t, time.Date(2024, 1, 12, 11, 0, 0, 0, time.UTC), stats.NewestSample)
}
