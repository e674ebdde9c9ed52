package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/faceswap/internal/api"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/config"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/database"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/face"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/media"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/repository"
	"github.com/saturnino-fabrica-de-software/faceswap/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.LogFile)
	slog.SetDefault(logger)

	logger.Info("starting face swap API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("face_provider", cfg.FaceProvider),
		slog.String("swap_provider", cfg.SwapProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Scratch files left by a previous crash
	scratch, err := media.NewScratch(cfg.ScratchDir, logger)
	if err != nil {
		return err
	}
	scratch.OnCleanupError(m.RecordCleanupError)
	if removed, err := scratch.Purge(); err != nil {
		logger.Warn("failed to purge scratch dir", slog.Any("error", err))
	} else if removed > 0 {
		logger.Info("purged stale scratch files", slog.Int("count", removed))
	}

	// Models are loaded once and shared by every request
	providers, err := face.NewProviders(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load face providers: %w", err)
	}
	defer func() {
		if err := providers.Close(); err != nil {
			logger.Error("failed to close providers", slog.Any("error", err))
		}
	}()

	svc := service.NewSwapService(providers.Analyzer, providers.Swapper, service.Options{
		MaxTargetWidth: cfg.MaxTargetWidth,
		JPEGQuality:    cfg.JPEGQuality,
		MaxConcurrent:  cfg.MaxConcurrentSwaps,
		MaxImagePixels: cfg.MaxImagePixels,
	}, logger).
		WithAudit(audit.NewSlogLogger(logger)).
		WithMetrics(m)

	deps := &api.Dependencies{
		Service: svc,
		Scratch: scratch,
		Fetcher: media.NewFetcher(media.FetchConfig{
			Timeout:  cfg.DownloadTimeout,
			MaxBytes: cfg.MaxDownloadBytes,
		}),
		Metrics: m,
	}

	// Optional swap job audit trail
	if cfg.HasDatabase() {
		if cfg.AutoMigrate {
			if err := database.MigrateUp(ctx, cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Info("migrations applied")
		}

		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		jobs := repository.NewSwapJobRepository(pool)
		svc.WithJobRecorder(jobs)
		deps.Jobs = jobs
		deps.DB = pool

		aggregator := metrics.NewAggregator(jobs, m, logger, cfg.StatsInterval, cfg.SwapJobRetention)
		go aggregator.Start(ctx)
		defer aggregator.Stop()

		logger.Info("swap job store enabled")
	}

	// Setup router
	router := api.NewRouter(logger, api.Config{
		BodyLimit:          cfg.BodyLimit(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
