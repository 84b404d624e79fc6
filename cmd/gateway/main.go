package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/primus-bench/orchestrator/pkg/api"
	"github.com/primus-bench/orchestrator/pkg/config"
	"github.com/primus-bench/orchestrator/pkg/logger/log"
	"github.com/primus-bench/orchestrator/pkg/submission"
)

// main wires the "gateway" process of spec §4.9's two-process deployment: a thin
// submission surface with no Store of its own, forwarding every campaign to the
// scheduler process via pkg/submission.Client.
func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	if cfg.Peer.BaseURL == "" {
		return fmt.Errorf("gateway requires peer.base_url to point at the scheduler process")
	}

	peer := submission.New(submission.Config{
		BaseURL:       cfg.Peer.BaseURL,
		Timeout:       cfg.Peer.Timeout,
		RetryCount:    cfg.Peer.RetryCount,
		RetryWaitTime: cfg.Peer.RetryWaitTime,
	})

	engine := api.NewEngine()
	api.RegisterGatewayRoutes(engine, api.NewGatewayHandler(peer))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: engine,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.WithField("addr", httpServer.Addr).Info("gateway: http server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("gateway: http server exited: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("gateway: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("gateway: http server shutdown: %v", err)
	}

	return nil
}
