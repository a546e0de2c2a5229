package memory

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/chartdata"
	"github.com/pulseboard/pulseboard/pkg/storage"
)

type entry struct {
	sample storage.Sample
	at     time.Time
}

// Storage stores samples in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	entries []entry
	mu      sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		entries: make([]entry, 0, 10000),
	}
}

// Append stores samples in memory. Samples whose timestamp cannot be
// normalized are skipped with a log line rather than failing the batch.
func (s *Storage) Append(ctx context.Context, samples []storage.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, smp := range samples {
		ms := chartdata.NormalizeTimestamp(smp.Timestamp)
		if math.IsNaN(ms) {
			log.Printf("Skipping sample with unparseable timestamp %q (metric %s)", smp.Timestamp, smp.Metric)
			continue
		}
		s.entries = append(s.entries, entry{
			sample: smp,
			at:     time.UnixMilli(int64(ms)).UTC(),
		})
	}
	return nil
}

// Query retrieves samples matching the request, in chronological order.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]storage.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := req.Granularity
	if g == "" {
		g = storage.Raw
	}

	var matched []entry
	for _, e := range s.entries {
		if e.sample.Granularity != g {
			continue
		}
		if e.sample.Metric != req.Metric {
			continue
		}
		if req.Series != "" && e.sample.Series != req.Series {
			continue
		}
		if !req.Start.IsZero() && e.at.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && e.at.After(req.End) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].at.Before(matched[j].at)
	})

	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}

	results := make([]storage.Sample, len(matched))
	for i, e := range matched {
		results[i] = e.sample
	}
	return results, nil
}

// Metrics lists known metric names, sorted.
func (s *Storage) Metrics(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, e := range s.entries {
		seen[e.sample.Metric] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SeriesNames lists the series recorded under a metric, sorted.
func (s *Storage) SeriesNames(ctx context.Context, metric string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, e := range s.entries {
		if e.sample.Metric == metric {
			seen[e.sample.Series] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes samples of one granularity older than the given time.
func (s *Storage) Delete(ctx context.Context, g storage.Granularity, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.sample.Granularity == g && e.at.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return nil
}

// Stats returns storage statistics.
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{}
	series := make(map[string]bool)

	for _, e := range s.entries {
		stats.TotalSamples++
		series[e.sample.Metric+"\x00"+e.sample.Series] = true

		if stats.OldestSample.IsZero() || e.at.Before(stats.OldestSample) {
			stats.OldestSample = e.at
		}
		if stats.NewestSample.IsZero() || e.at.After(stats.NewestSample) {
			stats.NewestSample = e.at
		}
	}
	stats.TotalSeries = uint64(len(series))

	return stats, nil
}

// Close is a no-op for the memory backend.
func (s *Storage) Close() error {
	return nil
}
