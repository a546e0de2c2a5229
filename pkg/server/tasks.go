package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/chart"
	"github.com/pulseboard/pulseboard/pkg/collector"
	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/rollup"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
	"github.com/pulseboard/pulseboard/pkg/storage"
	"github.com/pulseboard/pulseboard/pkg/storage/badger"
)

// RunCollection drives the sampling loop: every tick it gathers system
// telemetry, appends it to storage, and pushes the same batch to live
// WebSocket clients so dashboards update without polling.
func RunCollection(
	ctx context.Context,
	sampler *collector.Sampler,
	store storage.Storage,
	hub *chart.LiveHub,
	taskMonitor *monitor.TaskMonitor,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	ticker := time.NewTicker(config.CollectInterval)
	defer ticker.Stop()

	log.Printf("Collection loop started (every %v)", config.CollectInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping collection loop")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, config.CollectTimeout)
			samples := sampler.Collect(tickCtx)

			if len(samples) == 0 {
				cancel()
				taskMonitor.RecordFailure(nil)
				continue
			}

			if err := store.Append(tickCtx, samples); err != nil {
				cancel()
				taskMonitor.RecordFailure(err)
				log.Printf("Failed to store collected samples: %v", err)
				continue
			}
			cancel()
			taskMonitor.RecordSuccess()

			if hub.HasClients() {
				update := chart.LiveUpdate{
					At:      time.Now().UTC().Format(time.RFC3339),
					Samples: samples,
				}
				if err := hub.Broadcast(update); err != nil {
					log.Printf("Failed to broadcast samples: %v", err)
				}
			}
		}
	}
}

// RunRollup runs the rollup job periodically: raw samples aggregate into
// hourly, daily and monthly tiers, and expired tiers get trimmed.
func RunRollup(
	ctx context.Context,
	engine *rollup.Engine,
	taskMonitor *monitor.TaskMonitor,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	ticker := time.NewTicker(config.RollupInterval)
	defer ticker.Stop()

	// Retry with exponential backoff before giving up until the next
	// scheduled run.
	runWithRetry := func(isInitial bool) {
		maxRetries := 3
		baseDelay := 30 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1))
				log.Printf("Retrying rollup in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			start := time.Now()
			err := engine.Run(ctx)

			if err == nil {
				taskMonitor.RecordSuccess()
				if isInitial {
					log.Printf("Initial rollup completed in %v", time.Since(start).Round(time.Millisecond))
				} else {
					log.Printf("Rollup completed in %v (aggregation + retention cleanup)", time.Since(start).Round(time.Millisecond))
				}
				return
			}

			taskMonitor.RecordFailure(err)
			log.Printf("Rollup failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)

			status := taskMonitor.Status()
			if status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Rollup has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Rollup failed after %d attempts, will retry on next schedule", maxRetries+1)
	}

	// Run once on startup (non-blocking)
	go func() {
		log.Println("Running initial rollup (raw -> hourly -> daily -> monthly)...")
		runWithRetry(true)
	}()

	for {
		select {
		case <-ticker.C:
			log.Println("Scheduled rollup started...")
			runWithRetry(false)
		case <-ctx.Done():
			log.Println("Stopping rollup scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB value-log garbage collection periodically.
// Deleted samples accumulate in the value log until GC rewrites it, so
// skipping this means unbounded disk growth.
func RunBadgerGC(ctx context.Context, store storage.Storage, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()

			// One value-log pass per tick; 0.5 discard ratio rewrites files
			// that are at least half garbage.
			err := badgerStore.RunGC(0.5)
			if err != nil {
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-ctx.Done():
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
