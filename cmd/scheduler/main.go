package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/primus-bench/orchestrator/pkg/api"
	"github.com/primus-bench/orchestrator/pkg/cleanup"
	"github.com/primus-bench/orchestrator/pkg/config"
	"github.com/primus-bench/orchestrator/pkg/db"
	"github.com/primus-bench/orchestrator/pkg/executor"
	"github.com/primus-bench/orchestrator/pkg/kube"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/readiness"
	"github.com/primus-bench/orchestrator/pkg/reuse"
	"github.com/primus-bench/orchestrator/pkg/scheduler"
	"github.com/primus-bench/orchestrator/pkg/store"
)

// main wires the "scheduler" process of spec §4.9's two-process deployment: it owns
// the Campaign Store, the Kube Adapter, the Reuse Cache, the Sequential Executor, and
// the Scheduler Loop, and exposes the full /queue/* and benchmark-job surfaces
// directly against them.
func main() {
	if err := run(); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	gdb, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	adapter, err := kube.NewClient(kube.Options{
		Kubeconfig:    cfg.Kube.Kubeconfig,
		HelmBinary:    cfg.Kube.HelmBinary,
		KubectlBinary: cfg.Kube.KubectlBinary,
		ChartPath:     cfg.ChartPath,
	})
	if err != nil {
		return fmt.Errorf("building kube adapter: %w", err)
	}

	campaigns := store.NewCampaignStore(gdb)
	releases := store.NewEngineReleaseStore(gdb)
	reuses := store.NewReuseRecordStore(gdb)

	cleaner := cleanup.New(adapter, releases, campaigns)
	reuseCache := reuse.New(adapter, reuses, releases, cleaner)

	engineMonitor := readiness.NewEngineMonitor(adapter, readiness.EngineMonitorConfig{
		Timeout:     cfg.Readiness.EngineTimeout,
		MaxFailures: cfg.Readiness.EngineMaxFailures,
		RetryDelay:  cfg.Readiness.EngineRetryDelay,
		PollPeriod:  cfg.Readiness.EnginePollPeriod,
	})
	jobMonitor := readiness.NewJobMonitor(adapter, readiness.JobMonitorConfig{
		Timeout:     cfg.Readiness.JobTimeout,
		MaxFailures: cfg.Readiness.JobMaxFailures,
		RetryDelay:  cfg.Readiness.JobRetryDelay,
		PollPeriod:  cfg.Readiness.JobPollPeriod,
	})

	exec := executor.New(adapter, nil, campaigns, releases, reuseCache, engineMonitor, jobMonitor, cleaner, executor.Config{
		ChartPath:        cfg.ChartPath,
		DefaultNamespace: cfg.Kube.Namespace,
	})

	loop := scheduler.New(campaigns, exec, scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		MinInterval:  cfg.Scheduler.MinInterval,
		MaxInterval:  cfg.Scheduler.MaxInterval,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go loop.Run(ctx)

	engine := api.NewEngine()
	api.RegisterQueueRoutes(engine, api.NewCampaignHandler(campaigns, releases, cleaner, loop))
	api.RegisterJobRoutes(engine, api.NewJobHandler(adapter))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: engine,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("scheduler: http server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("scheduler: http server exited: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("scheduler: shutdown signal received")

	loop.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("scheduler: http server shutdown: %v", err)
	}

	return nil
}
