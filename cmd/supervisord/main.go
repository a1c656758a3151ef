package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supervisor-console/config"
	"supervisor-console/internal/api"
	"supervisor-console/internal/db"
	"supervisor-console/internal/flow"
	"supervisor-console/internal/logger"
	"supervisor-console/internal/notice"
	"supervisor-console/internal/scheduler"
	"supervisor-console/internal/store"
	"supervisor-console/internal/ticker"
	"supervisor-console/internal/upstream"
	"supervisor-console/internal/worker"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Init(&cfg.Log)
	logger.Log.Infof("configuration loaded from %s", configPath)

	if cfg.Upstream.BaseURL == "" {
		logger.Log.Fatal("upstream.base_url must be configured (or set UPSTREAM_BASE_URL)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal
	journal := store.NewNopStore()
	var pruner *scheduler.PruneScheduler
	if *cfg.Journal.Enabled {
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			logger.Log.Fatalf("failed to initialize database: %v", err)
		}
		journal = store.NewGormStore(gormDB)

		pruner = scheduler.NewPruneScheduler(journal, cfg.Journal.PruneCron, cfg.Journal.RetentionDays)
		if err := pruner.Start(); err != nil {
			logger.Log.Fatalf("failed to start journal pruning: %v", err)
		}
	} else {
		logger.Log.Info("transition journal disabled")
	}

	// Login flow
	opts := flowOptions(cfg.Flow)
	notices := notice.NewCenter(time.Duration(cfg.Server.NoticeTTLSeconds) * time.Second)
	controller := flow.NewController(opts, flow.Deps{
		Upstream: upstream.NewClient(cfg.Upstream),
		Notices:  notices,
		Journal:  journal,
		Ticker:   ticker.Clock{},
		Pool:     worker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.Queue),
	})
	flowDone := make(chan struct{})
	go func() {
		defer close(flowDone)
		controller.Run(ctx)
	}()

	// Console API
	router := api.NewRouter(api.NewHandler(controller, notices, journal, opts), cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Log.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Log.Info("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("HTTP server Shutdown: %v", err)
	}

	cancel()
	<-flowDone
	if pruner != nil {
		pruner.Stop()
	}

	logger.Log.Info("Server gracefully stopped")
}

func flowOptions(cfg config.FlowConfig) flow.Options {
	return flow.Options{
		OTPCountdown:     cfg.OTPCountdownSeconds,
		ChallengeTTL:     time.Duration(cfg.ChallengeTTLSeconds) * time.Second,
		FallbackReaders:  *cfg.FallbackReaders,
		RejectExpiredOTP: *cfg.RejectExpiredOTP,
	}
}
