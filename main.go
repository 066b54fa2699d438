package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarkariwatch/scraper-http-service/common/config"
	"github.com/sarkariwatch/scraper-http-service/common/db"
	"github.com/sarkariwatch/scraper-http-service/common/messaging"
	"github.com/sarkariwatch/scraper-http-service/common/services"
	"github.com/sarkariwatch/scraper-http-service/common/storage"
	"github.com/sarkariwatch/scraper-http-service/common/work"
	"github.com/sarkariwatch/scraper-http-service/handler"
	"github.com/sarkariwatch/scraper-http-service/scraper"

	"github.com/rs/zerolog/log"

	"github.com/joho/godotenv"
)

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE DATABASES
	dbConn, err := db.SetupDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup database")
	}
	defer dbConn.Close()

	// INITIATE NATS CLIENT
	natsClient, err := messaging.SetupNatsBroker(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup NATS client")
	}
	defer natsClient.Close()

	// Page snapshots are optional; without a bucket the pipeline just skips
	// archiving.
	var snapshots *storage.SnapshotStore
	if cfg.GCS.Bucket != "" {
		gcsStorage, err := storage.NewGCSStorage(ctx, storage.GCSConfig{
			ProjectID:       cfg.GCS.ProjectID,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup GCS storage")
		}
		snapshots = storage.NewSnapshotStore(gcsStorage, cfg.GCS.Bucket)
	}

	// WIRE THE SCRAPING ENGINE
	sources := services.NewSourceService(dbConn.Queries)
	audit := services.NewAuditService(dbConn.Queries)
	jobStore := services.NewJobStoreService(dbConn.Queries)
	runManager := work.NewRunManager(dbConn.Redis)

	orchestrator := scraper.NewOrchestrator(
		audit,
		scraper.NewReconciler(jobStore),
		runManager,
		scraper.NewRateLimiterRegistry(),
		snapshots,
		cfg.Scraper,
		nil,
	)

	pool, err := work.NewWorkerPool[*scraper.RunResult](cfg.Scraper.WorkerCount, cfg.Scraper.WorkerCount*4)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker pool")
	}

	engine := scraper.NewEngine(sources, orchestrator, runManager, pool)
	engine.Start(ctx)
	defer engine.Stop()

	// Scrape triggers arriving over NATS
	if err := handler.RegisterScrapeConsumers(natsClient, engine); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scrape consumers")
	}
	log.Info().Msg("Scrape consumers registered successfully")

	// Periodic sweep for due sources
	scheduler := scraper.NewScheduler(engine, cfg.Scraper.SchedulerSpec)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer scheduler.Stop()

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	server.SetDB(dbConn)
	server.SetNatsClient(natsClient)
	server.SetEngine(engine)
	server.setupRoute()

	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Msg("Server started successfully")

	// Wait for shutdown signal
	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	log.Info().Msg("Server stopped")
}
