package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"flow/internal/cache"
	"flow/internal/cli"
	"flow/internal/core"
	apphttp "flow/internal/http"
	"flow/internal/log"
	"flow/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting flow server", "port", cfg.Port, "backend", cfg.DataBackend)

	result := cli.InitBackend(context.Background(), logger, cfg)

	// Projection cache, cleaned in the background
	projections := cache.NewLRUCache[[]core.CashflowPoint](cfg.ProjectionCacheSize, cfg.ProjectionCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(projections)
	cacheManager.StartCleanup(cfg.ProjectionCacheTTL)

	forecast := services.NewForecastService(result.Backend, projections, cfg.ForecastHorizonMonths)

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.ChangePublisher
	if result.Publisher != nil {
		publisher = result.Publisher
	}
	transactions := services.NewTransactionService(result.Backend, publisher, forecast)

	var ready func(context.Context) error
	if p, ok := result.Backend.(interface{ Ping(context.Context) error }); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, transactions, forecast, apphttp.Options{
		Logger: logger.WithComponent(log.ComponentHTTP),
		Ready:  ready,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	// External edits to the transactions file drop cached projections.
	if cfg.WatchFile && result.Watch != nil {
		go func() {
			err := result.Watch(ctx, func() {
				logger.Info("Transactions file changed, invalidating projections")
				forecast.Invalidate()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("File watcher stopped", "error", err)
			}
		}()
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
