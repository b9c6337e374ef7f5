package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"vgsales-dashboard/internal/charts"
	"vgsales-dashboard/internal/config"
	"vgsales-dashboard/internal/middleware"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/server"
	"vgsales-dashboard/internal/services"
)

const (
	version     = "1.0.0"
	warmTimeout = 30 * time.Second
)

// newHandler assembles the router and the outer middleware chain.
func newHandler(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	srv := server.NewServer(server.Options{
		Analytics: analytics,
		Renderer:  charts.NewRenderer(logger),
		OutputDir: cfg.Paths.OutputDir,
		Metrics:   metrics,
		Logger:    logger,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

// warmUp loads the cleaned dataset before the first request. A missing file
// is not fatal: the dashboard answers 503 until `vgsales clean` has run.
func warmUp(analytics *services.Analytics, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	defer cancel()

	start := time.Now()
	ds, err := analytics.Dataset(ctx)
	if err != nil {
		logger.Warn("cleaned dataset not available yet", "error", err)
		return
	}
	logger.Info("cleaned dataset loaded",
		"records", len(ds.Records),
		"duration", time.Since(start),
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"config", cfg,
	)

	shutdownTracing, err := observability.SetupTracing(cfg.Tracing)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	analytics := services.NewAnalytics(cfg.Paths.CleanFile, logger, metrics)
	warmUp(analytics, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
