package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sidmazak/bulk-csv-editor/internal/config"
	"github.com/sidmazak/bulk-csv-editor/internal/engine"
	"github.com/sidmazak/bulk-csv-editor/internal/fetch"
	"github.com/sidmazak/bulk-csv-editor/internal/logging"
	"github.com/sidmazak/bulk-csv-editor/internal/store"
	"github.com/sidmazak/bulk-csv-editor/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage_backend", cfg.Storage.Backend,
		"max_concurrent", cfg.Process.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage collaborators
	artifacts, err := newArtifactStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize artifact store", "error", err)
		os.Exit(1)
	}

	uploads, err := store.NewTempFiles(cfg.Storage.UploadDir)
	if err != nil {
		slog.Error("failed to initialize upload intake", "error", err)
		os.Exit(1)
	}

	// Engine
	engine.ProcessTimeout = cfg.Process.Timeout
	limiter := engine.NewProcessLimiter(cfg.Process.MaxConcurrent, cfg.Process.MaxWaitTime)
	service := engine.NewService(fetch.New(uploads, cfg.Process.MaxFileSize), artifacts, limiter)

	server := web.NewServer(cfg, service, uploads, artifacts)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		store.StartJanitor(gctx, artifacts, uploads, store.JanitorConfig{
			ArtifactTTL:   cfg.Storage.ArtifactTTL,
			UploadTTL:     cfg.Storage.UploadTTL,
			CheckInterval: cfg.Storage.CleanupInterval,
		})
		return nil
	})

	// Graceful shutdown on signal or server failure
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Let in-flight runs finish before the process exits
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for runs to finish", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("runs did not finish in time", "error", err)
			} else {
				slog.Info("all runs finished")
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newArtifactStore builds the configured artifact backend.
func newArtifactStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return store.NewS3Store(ctx, store.S3Options{
			Bucket:       cfg.Storage.S3Bucket,
			Prefix:       cfg.Storage.S3Prefix,
			Region:       cfg.Storage.S3Region,
			Endpoint:     cfg.Storage.S3Endpoint,
			UsePathStyle: cfg.Storage.S3UsePathStyle,
			DownloadPath: cfg.Storage.DownloadPath,
		})
	default:
		return store.NewDiskStore(cfg.Storage.ArtifactDir, cfg.Storage.DownloadPath)
	}
}
