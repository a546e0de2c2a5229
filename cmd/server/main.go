package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/server"
	"github.com/pulseboard/pulseboard/pkg/server/monitor"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("Starting Pulseboard server...")

	cfg := server.LoadConfig()
	maxStorageBytes := cfg.MaxStorageGB * 1024 * 1024 * 1024
	log.Printf("Configuration: data dir = %s, storage limit = %d GB, memory limit = %d MB",
		cfg.DataDir, cfg.MaxStorageGB, cfg.MaxMemoryMB)

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, maxStorageBytes)
	collectorMonitor := monitor.NewTaskMonitor("collector", time.Minute)

	chartHandler, hub, sampler := server.InitializeHandlers(store)
	engine, rollupMonitor := server.InitializeRollup(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	wg.Add(1)
	go server.RunCollection(ctx, sampler, store, hub, collectorMonitor, &wg)

	wg.Add(1)
	go server.RunRollup(ctx, engine, rollupMonitor, &wg)

	wg.Add(1)
	go server.RunBadgerGC(ctx, store, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, chartHandler, hub, storageMonitor, collectorMonitor, rollupMonitor, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s", cfg.Port)
		log.Printf("Chart API: GET /v1/charts/{metric}?granularity=raw&points=%d", config.ChartDefaultPoints)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received...")

	// Cancel before wg.Wait or the background loops never exit.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("Pulseboard exited cleanly")
}
