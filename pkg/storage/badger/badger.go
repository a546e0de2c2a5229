package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/pulseboard/pulseboard/pkg/chartdata"
	"github.com/pulseboard/pulseboard/pkg/storage"
)

// Storage implements storage.Storage using BadgerDB (LSM tree).
type Storage struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly
	// defaults: 16 MB memtable + caches).
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend tuned for an append-mostly
// time-series workload with strict memory bounds.
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Badger's defaults assume a server; a telemetry daemon shares the host
	// with the workloads it is charting, so every cache gets a hard bound.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	} else {
		// 16 MB is the floor for decent flush behavior.
		memTableSize = 16 * 1024 * 1024
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(1).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Storage{db: db}, nil
}

// Append stores samples. Each sample writes a data key ordered by its
// normalized timestamp plus an index entry for metric/series discovery.
// Samples with unparseable timestamps are skipped, not errors.
func (s *Storage) Append(ctx context.Context, samples []storage.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, smp := range samples {
			// Check context periodically (every 100 samples)
			if i%100 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			ms := chartdata.NormalizeTimestamp(smp.Timestamp)
			if math.IsNaN(ms) {
				log.Printf("Skipping sample with unparseable timestamp %q (metric %s)", smp.Timestamp, smp.Metric)
				continue
			}

			value, err := json.Marshal(smp)
			if err != nil {
				return fmt.Errorf("failed to encode sample: %w", err)
			}

			if err := txn.Set(sampleKey(smp.Granularity, smp.Metric, smp.Series, int64(ms)), value); err != nil {
				return fmt.Errorf("failed to write sample: %w", err)
			}
			if err := txn.Set(indexKey(smp.Metric, smp.Series), nil); err != nil {
				return fmt.Errorf("failed to write series index: %w", err)
			}
		}
		return nil
	})
}

// Query retrieves samples for one metric in chronological order. Each series
// is a contiguous key range, so the scan seeks straight to the start
// timestamp instead of filtering the whole keyspace.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]storage.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := req.Granularity
	if g == "" {
		g = storage.Raw
	}

	seriesList := []string{req.Series}
	if req.Series == "" {
		var err error
		if seriesList, err = s.SeriesNames(ctx, req.Metric); err != nil {
			return nil, err
		}
	}

	type timed struct {
		at     int64
		sample storage.Sample
	}
	var matched []timed

	err := s.db.View(func(txn *badger.Txn) error {
		for _, series := range seriesList {
			prefix := seriesPrefix(g, req.Metric, series)

			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			iterOpts.PrefetchSize = 100
			it := txn.NewIterator(iterOpts)

			seek := prefix
			if !req.Start.IsZero() {
				seek = append(append([]byte{}, prefix...), tsBytes(req.Start.UnixMilli())...)
			}

			var iterCount int
			for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						it.Close()
						return ctx.Err()
					default:
					}
				}

				at := keyMillis(it.Item().Key())
				if !req.End.IsZero() && at > req.End.UnixMilli() {
					break
				}

				err := it.Item().Value(func(val []byte) error {
					var smp storage.Sample
					if err := json.Unmarshal(val, &smp); err != nil {
						return fmt.Errorf("failed to decode sample: %w", err)
					}
					matched = append(matched, timed{at: at, sample: smp})
					return nil
				})
				if err != nil {
					it.Close()
					return err
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Per-series scans are each ordered; interleave them globally.
	sort.Slice(matched, func(i, j int) bool { return matched[i].at < matched[j].at })

	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}

	results := make([]storage.Sample, len(matched))
	for i, m := range matched {
		results[i] = m.sample
	}
	return results, nil
}

// Metrics lists known metric names, sorted.
func (s *Storage) Metrics(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte{indexPrefix}
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			metric, _ := parseIndexKey(it.Item().Key())
			seen[metric] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := append([]byte{indexPrefix}, metric...)
	prefix = append(prefix, 0)

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			_, series := parseIndexKey(it.Item().Key())
			names = append(names, series)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

// Delete removes samples of one granularity older than the given time. The
// granularity byte sits right after the data prefix, so the whole tier is
// one key range.
func (s *Storage) Delete(ctx context.Context, g storage.Granularity, before time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte{dataPrefix, granularityByte(g)}
	cutoff := before.UnixMilli()

	return s.db.Update(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)

		var keysToDelete [][]byte
		var iterCount int
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					it.Close()
					return ctx.Err()
				default:
				}
			}

			if keyMillis(it.Item().Key()) >= cutoff {
				continue
			}
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats returns storage statistics.
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte{dataPrefix}
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		series := make(map[uint64]bool)
		var oldest, newest int64
		var iterCount int

		for it.Rewind(); it.ValidForPrefix([]byte{dataPrefix}); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			key := it.Item().Key()
			stats.TotalSamples++
			series[binary.BigEndian.Uint64(key[2:10])] = true

			at := keyMillis(key)
			if oldest == 0 || at < oldest {
				oldest = at
			}
			if at > newest {
				newest = at
			}
		}

		stats.TotalSeries = uint64(len(series))
		if oldest != 0 {
			stats.OldestSample = time.UnixMilli(oldest).UTC()
		}
		if newest != 0 {
			stats.NewestSample = time.UnixMilli(newest).UTC()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// Close shuts down BadgerDB cleanly.
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space.
// discardRatio: run GC if this fraction of a file can be discarded.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

const (
	dataPrefix  byte = 's'
	indexPrefix byte = 'm'
)

func granularityByte(g storage.Granularity) byte {
	switch g {
	case storage.Hourly:
		return 1
	case storage.Daily:
		return 2
	case storage.Monthly:
		return 3
	}
	return 0
}

// sampleKey layout: [prefix 's'][granularity][series hash 8B][epoch ms 8B].
// Big-endian timestamps make every series range chronologically sorted.
func sampleKey(g storage.Granularity, metric, series string, ms int64) []byte {
	key := make([]byte, 0, 18)
	key = append(key, dataPrefix, granularityByte(g))
	key = binary.BigEndian.AppendUint64(key, xxhash.Sum64String(metric+"\x00"+series))
	return append(key, tsBytes(ms)...)
}

func seriesPrefix(g storage.Granularity, metric, series string) []byte {
	key := make([]byte, 0, 10)
	key = append(key, dataPrefix, granularityByte(g))
	return binary.BigEndian.AppendUint64(key, xxhash.Sum64String(metric+"\x00"+series))
}

func tsBytes(ms int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ms))
	return buf[:]
}

// keyMillis extracts the epoch-millisecond component from a data key.
func keyMillis(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[10:18]))
}

// indexKey layout: [prefix 'm'][metric][0x00][series].
func indexKey(metric, series string) []byte {
	key := make([]byte, 0, len(metric)+len(series)+2)
	key = append(key, indexPrefix)
	key = append(key, metric...)
	key = append(key, 0)
	return append(key, series...)
}

func parseIndexKey(key []byte) (metric, series string) {
	body := key[1:]
	if i := bytes.IndexByte(body, 0); i >= 0 {
		return string(body[:i]), string(body[i+1:])
	}
	return string(body), ""
}
