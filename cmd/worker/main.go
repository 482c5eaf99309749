package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohit/contact-ingest-worker/internal/api"
	"github.com/rohit/contact-ingest-worker/internal/blobstore"
	"github.com/rohit/contact-ingest-worker/internal/config"
	"github.com/rohit/contact-ingest-worker/internal/consumer"
	"github.com/rohit/contact-ingest-worker/internal/metrics"
	"github.com/rohit/contact-ingest-worker/internal/processor"
	"github.com/rohit/contact-ingest-worker/internal/queue"
	"github.com/rohit/contact-ingest-worker/internal/repository/postgres"
	"github.com/rohit/contact-ingest-worker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	metricsCollector := metrics.NewCollector()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	jobRepo := postgres.NewJobRepository(db)
	stagingRepo := postgres.NewStagingRepository(db)
	issueRepo := postgres.NewIssueRepository(db)
	contactRepo := postgres.NewContactRepository(db, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobStore, err := blobstore.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage client")
	}

	sqsQueue, err := queue.NewSQSQueue(ctx, cfg.Blob.Region, cfg.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize queue client")
	}

	proc := processor.New(jobRepo, stagingRepo, issueRepo, contactRepo, blobStore, cfg.Processing, log, metricsCollector)

	consumerLoop := consumer.New(sqsQueue, proc, cfg.Processing.RetryDelay(), log, metricsCollector)
	go consumerLoop.Run(ctx)

	var srv *http.Server
	if cfg.Metrics.Port != 0 {
		router := api.NewRouter(db.DB, metricsCollector, log, true)
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: router.Engine(),
		}
		go func() {
			log.Info().Int("port", cfg.Metrics.Port).Msg("starting ops HTTP server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("ops HTTP server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	cancel()
	consumerLoop.Stop()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ops HTTP server forced to shutdown")
		}
	}

	log.Info().Msg("shutdown complete")
}
