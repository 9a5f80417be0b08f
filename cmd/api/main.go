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

	"golang.org/x/sync/errgroup"

	"github.com/glyphworks/puzzle-backend/internal/data/db"
	"github.com/glyphworks/puzzle-backend/internal/data/repos"
	"github.com/glyphworks/puzzle-backend/internal/handlers"
	"github.com/glyphworks/puzzle-backend/internal/observability"
	"github.com/glyphworks/puzzle-backend/internal/platform/envutil"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/platform/redisx"
	"github.com/glyphworks/puzzle-backend/internal/server"
	"github.com/glyphworks/puzzle-backend/internal/services"
	"github.com/glyphworks/puzzle-backend/internal/temporalx"
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
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "puzzle-orchestrator-api"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	workflowRunRepo := repos.NewWorkflowRunRepo(thePG, log)

	// Redis (optional trigger dedup)
	redisClient, err := redisx.New(log)
	if err != nil {
		log.Warn("Redis init failed; trigger dedup disabled", "error", err)
	}

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Temporal client init failed", "error", err)
		os.Exit(1)
	}
	if temporalClient == nil {
		log.Error("TEMPORAL_ADDRESS is not set; the API cannot start workflows")
		os.Exit(1)
	}
	defer temporalClient.Close()

	temporalCfg := temporalx.LoadConfig()

	// Services
	orchestrator, err := services.NewOrchestratorService(log, workflowRunRepo, temporalClient, redisClient, temporalCfg.TaskQueue)
	if err != nil {
		log.Error("Could not init OrchestratorService", "error", err)
		os.Exit(1)
	}

	// Handlers + router
	router := server.NewRouter(server.RouterConfig{
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "puzzle-orchestrator-api"),
		PurchaseHandler: handlers.NewPurchaseHandler(orchestrator),
		ScoreHandler:    handlers.NewScoreHandler(orchestrator),
		WorkflowHandler: handlers.NewWorkflowHandler(orchestrator),
	})

	addr := ":" + envutil.String("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("API exited with error", "error", err)
	}

	if shutdownOtel != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			log.Warn("otel shutdown failed", "error", err)
		}
	}
}
