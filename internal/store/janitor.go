package store

// janitor.go expires stored artifacts and stale uploads in the background.
//
// The janitor is long-running and context-aware for graceful shutdown. It
// logs sweep results and errors but never fails the application when an
// individual removal fails; the next cycle retries whatever is left.

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig holds retention settings for the background sweeper.
// All fields must be positive.
type JanitorConfig struct {
	ArtifactTTL   time.Duration // how long artifacts stay downloadable
	UploadTTL     time.Duration // how long unconsumed uploads stay
	CheckInterval time.Duration // how often to sweep
}

// StartJanitor runs retention sweeps until ctx is cancelled. It sweeps
// immediately on start, then every CheckInterval.
func StartJanitor(ctx context.Context, artifacts Store, uploads *TempFiles, cfg JanitorConfig) {
	slog.Info("janitor started",
		"artifact_ttl", cfg.ArtifactTTL,
		"upload_ttl", cfg.UploadTTL,
		"check_interval", cfg.CheckInterval,
	)

	runSweep(ctx, artifacts, uploads, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return
		case <-ticker.C:
			runSweep(ctx, artifacts, uploads, cfg)
		}
	}
}

// runSweep performs one artifact + upload expiry cycle.
func runSweep(ctx context.Context, artifacts Store, uploads *TempFiles, cfg JanitorConfig) {
	start := time.Now()

	expired, err := sweepArtifacts(ctx, artifacts, cfg.ArtifactTTL)
	if err != nil {
		slog.Error("artifact sweep failed", "error", err)
	} else if expired > 0 {
		slog.Info("expired artifacts removed", "count", expired)
	}

	if uploads != nil {
		removed, err := uploads.Sweep(cfg.UploadTTL)
		if err != nil {
			slog.Error("upload sweep failed", "error", err)
		} else if removed > 0 {
			slog.Info("stale uploads removed", "count", removed)
		}
	}

	slog.Debug("janitor sweep completed", "duration_ms", time.Since(start).Milliseconds())
}

// sweepArtifacts removes stored artifacts older than ttl.
func sweepArtifacts(ctx context.Context, artifacts Store, ttl time.Duration) (int, error) {
	infos, err := artifacts.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, info := range infos {
		if !info.ModTime.Before(cutoff) {
			continue
		}
		if err := artifacts.Remove(ctx, info.Key); err != nil {
			slog.Warn("artifact removal failed", "key", info.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
