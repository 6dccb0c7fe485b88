package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	jobhandler "github.com/aliskhannn/line-draw/internal/api/handlers/job"
	"github.com/aliskhannn/line-draw/internal/api/router"
	"github.com/aliskhannn/line-draw/internal/api/server"
	"github.com/aliskhannn/line-draw/internal/config"
	"github.com/aliskhannn/line-draw/internal/events"
	"github.com/aliskhannn/line-draw/internal/job"
	"github.com/aliskhannn/line-draw/internal/render"
	filestorage "github.com/aliskhannn/line-draw/internal/storage/file"
	miniostorage "github.com/aliskhannn/line-draw/internal/storage/minio"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config")

	// Artifact storage: local filesystem by default, MinIO when configured.
	var storage job.ArtifactStorage
	switch cfg.Storage.Backend {
	case "minio":
		s, err := miniostorage.NewStorage(
			ctx,
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.BucketName,
			cfg.Storage.UseSSL,
		)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		storage = s
	default:
		storage = filestorage.NewStorage(cfg.Storage.BaseDir)
	}

	// Retry strategy for Kafka sends.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Optional Kafka producer for job lifecycle events.
	var producer *events.Producer
	var managerPublisher job.EventPublisher
	if cfg.Kafka.Enabled {
		producer = events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, strategy)
		managerPublisher = producer
	}

	// Job manager owning the registry and the simulation worker pool.
	manager := job.New(job.Config{
		Workers:          cfg.Simulation.Workers,
		QueueSize:        cfg.Simulation.QueueSize,
		ProgressInterval: cfg.Simulation.ProgressInterval,
		Render: render.Options{
			Size:          cfg.Render.Size,
			LineWidth:     cfg.Render.LineWidth,
			VelocityWidth: cfg.Render.VelocityWidth,
			MinWidth:      cfg.Render.MinWidth,
			MaxWidth:      cfg.Render.MaxWidth,
		},
	}, storage, managerPublisher)

	// Start simulation workers in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go manager.Run(ctx, &wg)

	// HTTP handler for job routes.
	h := jobhandler.NewHandler(manager)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(h)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for simulation workers to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close the Kafka producer client.
	if producer != nil {
		if err := producer.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
}
