package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/observability"
	"github.com/glyphworks/puzzle-backend/internal/platform/envutil"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/temporalworker"
)

func main() {
	logMode := envutil.String("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "puzzle-orchestrator-worker"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})

	// Downstream clients
	clientCfg, err := clients.LoadConfig()
	if err != nil {
		log.Error("Downstream client config invalid", "error", err)
		os.Exit(1)
	}
	receipts, err := clients.NewReceiptVerifier(log, clientCfg)
	if err != nil {
		log.Error("Could not init ReceiptVerifier", "error", err)
		os.Exit(1)
	}
	inventory, err := clients.NewInventoryService(log, clientCfg)
	if err != nil {
		log.Error("Could not init InventoryService", "error", err)
		os.Exit(1)
	}
	leaderboard, err := clients.NewLeaderboardService(log, clientCfg)
	if err != nil {
		log.Error("Could not init LeaderboardService", "error", err)
		os.Exit(1)
	}
	cheat, err := clients.NewCheatDetectionService(log, clientCfg)
	if err != nil {
		log.Error("Could not init CheatDetectionService", "error", err)
		os.Exit(1)
	}
	cloudSave, err := clients.NewCloudSaveService(log, clientCfg)
	if err != nil {
		log.Error("Could not init CloudSaveService", "error", err)
		os.Exit(1)
	}
	analytics, err := clients.NewAnalyticsService(log, clientCfg)
	if err != nil {
		log.Error("Could not init AnalyticsService", "error", err)
		os.Exit(1)
	}
	audit, err := clients.NewAuditService(log, clientCfg)
	if err != nil {
		log.Error("Could not init AuditService", "error", err)
		os.Exit(1)
	}

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Temporal client init failed", "error", err)
		os.Exit(1)
	}
	if temporalClient == nil {
		log.Error("TEMPORAL_ADDRESS is not set; the worker has nothing to poll")
		os.Exit(1)
	}
	defer temporalClient.Close()

	runner, err := temporalworker.NewRunner(log, temporalClient, temporalworker.Deps{
		Receipts:    receipts,
		Inventory:   inventory,
		Leaderboard: leaderboard,
		Cheat:       cheat,
		CloudSave:   cloudSave,
		Analytics:   analytics,
		Audit:       audit,
	})
	if err != nil {
		log.Error("Could not init worker runner", "error", err)
		os.Exit(1)
	}

	if err := runner.Start(ctx); err != nil {
		log.Error("Worker failed to start", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("Shutdown signal received; stopping worker")

	if shutdownOtel != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			log.Warn("otel shutdown failed", "error", err)
		}
	}
}
