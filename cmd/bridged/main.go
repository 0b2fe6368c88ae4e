package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fencio-dev/prism/internal/bridge"
	"github.com/fencio-dev/prism/internal/bridge/common/clock"
	"github.com/fencio-dev/prism/internal/bridge/common/log"
	"github.com/fencio-dev/prism/internal/bridge/config"
	"github.com/fencio-dev/prism/internal/bridge/hotcache"
	"github.com/fencio-dev/prism/internal/bridge/refresh"
)

const (
	version = "0.1.0-dev"
	appName = "bridged"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":           version,
		"env":               cfg.Env,
		"log_level":         cfg.Log.Level,
		"warm_storage_path": cfg.Storage.WarmStoragePath,
		"cold_storage_path": cfg.Storage.ColdStoragePath,
		"refresh_interval":  cfg.Scheduler.RefreshInterval.String(),
		"refresh_enabled":   cfg.Scheduler.Enabled,
	}, "starting bridged")

	clk := clock.RealClock{}

	b, err := bridge.New(cfg.Storage, hotcache.DefaultCapacity, clk)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "failed to initialize bridge")
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error(map[string]any{"error": err}, "error closing storage")
		}
	}()

	refreshSvc := refresh.NewService(b.HotCache(), b.WarmStorage(), clk)
	scheduler := refresh.NewScheduler(refreshSvc, refresh.SchedulerConfig{
		RefreshInterval: cfg.Scheduler.RefreshInterval,
		Enabled:         cfg.Scheduler.Enabled,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")
		cancel()
	}()

	log.Info(map[string]any{
		"tables":      b.TableCount(),
		"app":         appName,
		"version":     version,
		"hot_entries": b.StorageStats().HotRules,
	}, "bridge ready")

	scheduler.Run(ctx)
	// Run returns at once when the scheduler is disabled; keep serving
	// until a shutdown signal arrives.
	<-ctx.Done()

	log.Info(nil, "bridged stopped gracefully")
}
