// Package collector samples local system telemetry through gopsutil and
// shapes it into raw storage samples for the chart pipeline.
package collector

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/pulseboard/pulseboard/pkg/storage"
)

// Metric names as stored and served by the chart API.
const (
	MetricCPUTotal  = "cpu.total"
	MetricCPUCore   = "cpu.core"
	MetricMemUsed   = "mem.used_percent"
	MetricNetRx     = "net.rx_bytes_per_sec"
	MetricNetTx     = "net.tx_bytes_per_sec"
	MetricTCPStates = "net.tcp_states"
)

// Sampler gathers one round of system samples per Collect call. Network
// throughput needs the previous counter snapshot, so a Sampler is stateful
// and not safe for concurrent Collect calls; the collection loop is the
// only caller.
type Sampler struct {
	prevRx uint64
	prevTx uint64
	prevAt time.Time
}

// New creates a sampler.
func New() *Sampler {
	return &Sampler{}
}

// Collect gathers CPU, memory, network and TCP-state samples, all stamped
// with the same explicit-offset UTC instant. A failing subsystem is logged
// and skipped; partial results beat a blank collection tick.
func (s *Sampler) Collect(ctx context.Context) []storage.Sample {
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339)

	var samples []storage.Sample
	add := func(metric, series string, value float64) {
		samples = append(samples, storage.Sample{
			Metric:      metric,
			Series:      series,
			Granularity: storage.Raw,
			Timestamp:   ts,
			Value:       value,
		})
	}

	if total, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		log.Printf("Failed to read total CPU usage: %v", err)
	} else if len(total) > 0 {
		add(MetricCPUTotal, "", total[0])
	}

	if perCore, err := cpu.PercentWithContext(ctx, 0, true); err != nil {
		log.Printf("Failed to read per-core CPU usage: %v", err)
	} else {
		for i, pct := range perCore {
			add(MetricCPUCore, "core"+strconv.Itoa(i), pct)
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Printf("Failed to read memory usage: %v", err)
	} else {
		add(MetricMemUsed, "", vm.UsedPercent)
	}

	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err != nil {
		log.Printf("Failed to read network counters: %v", err)
	} else if len(counters) > 0 {
		rx, tx := counters[0].BytesRecv, counters[0].BytesSent

		// Throughput is a counter delta; the first tick only primes state.
		if !s.prevAt.IsZero() {
			elapsed := now.Sub(s.prevAt)
			add(MetricNetRx, "", Rate(s.prevRx, rx, elapsed))
			add(MetricNetTx, "", Rate(s.prevTx, tx, elapsed))
		}
		s.prevRx, s.prevTx, s.prevAt = rx, tx, now
	}

	if conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp"); err != nil {
		log.Printf("Failed to read TCP connections: %v", err)
	} else {
		for state, count := range CountTCPStates(conns) {
			add(MetricTCPStates, state, float64(count))
		}
	}

	return samples
}

// Rate converts a monotonic byte-counter delta into bytes per second.
// Counter resets (reboot, interface bounce) yield 0 rather than a huge
// negative spike.
func Rate(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev || elapsed <= 0 {
		return 0
	}
	return float64(cur-prev) / elapsed.Seconds()
}

// CountTCPStates tallies connections by state name (ESTABLISHED, LISTEN,
// TIME_WAIT, ...). States not present simply don't appear.
func CountTCPStates(conns []gopsnet.ConnectionStat) map[string]int {
	counts := make(map[string]int)
	for _, conn := range conns {
		if conn.Status == "" {
			continue
		}
		counts[conn.Status]++
	}
	return counts
}
