package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvcache/internal/config"
	"github.com/JonMunkholm/csvcache/internal/core"
	"github.com/JonMunkholm/csvcache/internal/logging"
	"github.com/JonMunkholm/csvcache/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present. Variables already set in the environment win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"load_max_concurrent", cfg.Load.MaxConcurrent,
		"load_max_file_size", cfg.Load.MaxFileSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"require_api_key", cfg.Security.RequireAPIKey,
	)
	slog.Debug("configuration", "config", cfg.String())

	service := core.NewService(core.NewCache(), cfg)
	server := web.NewServer(service, cfg)

	// Preloads run in the background so the server answers while they parse.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go preload(jobCtx, service, cfg.Load)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Path loads started over HTTP outlive their requests.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for loads to complete", "active", status.Active)
			if err := service.WaitForLoads(shutdownCtx); err != nil {
				slog.Warn("loads did not complete in time", "error", err)
			} else {
				slog.Info("all loads completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// preload loads LOAD_PATHS and then LOAD_MANIFEST into the cache.
func preload(ctx context.Context, service *core.Service, cfg config.LoadConfig) {
	for _, path := range cfg.Paths {
		report, err := service.LoadPath(ctx, path)
		logReport("preload path", path, report, err)
		if ctx.Err() != nil {
			return
		}
	}

	if cfg.Manifest != "" {
		report, err := service.LoadManifest(ctx, cfg.Manifest)
		logReport("preload manifest", cfg.Manifest, report, err)
	}
}

func logReport(msg, path string, report *core.LoadReport, err error) {
	if err != nil {
		slog.Error(msg+" failed", "path", path, "error", err, "code", core.MapError(err).Code)
	}
	if report == nil {
		return
	}
	for _, f := range report.Failed {
		slog.Warn(msg+": source skipped", "path", f.Path, "reason", f.Reason)
	}
	slog.Info(msg,
		"path", path,
		"loaded", len(report.Loaded),
		"failed", len(report.Failed),
		"duration_ms", report.DurationMS,
	)
}
