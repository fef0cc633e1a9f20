package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"flow/internal/amqp"
	"flow/internal/cache"
	"flow/internal/cli"
	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/services"
	"flow/internal/sheets"
	gsheet "flow/internal/sheets/google"
	mem "flow/internal/sheets/memory"
	"flow/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting flow-worker", "backend", cfg.DataBackend)

	result := cli.InitBackend(context.Background(), logger, cfg)

	var exporter sheets.Exporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			TransactionsSheet:  cfg.GoogleTransactionsSheet,
			CashflowSheet:      cfg.GoogleCashflowSheet,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = client
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
		exporter = mem.New()
	}

	projections := cache.NewLRUCache[[]core.CashflowPoint](cfg.ProjectionCacheSize, cfg.ProjectionCacheTTL)
	forecast := services.NewForecastService(result.Backend, projections, cfg.ForecastHorizonMonths)

	processorConfig := services.DefaultExportProcessorConfig()
	processorConfig.Interval = cfg.ExportInterval
	processor := services.NewExportProcessor(result.Backend, forecast, exporter, processorConfig)

	var consumer worker.ChangeConsumer
	if result.Publisher != nil {
		consumer = result.Publisher
	} else {
		logger.Info("AMQP disabled - exporting on the periodic tick only")
	}
	exportWorker := worker.NewExportWorker(consumer, processor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return exportWorker.Run(gctx)
	})

	// Without a broker, edits to the transactions file are picked up here.
	if cfg.WatchFile && result.Watch != nil && consumer == nil {
		g.Go(func() error {
			return result.Watch(gctx, func() {
				msg := amqp.NewTransactionChangeMessage("", amqp.OpUpdate)
				_ = processor.HandleChange(gctx, msg)
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		if cleanupErr := result.Cleanup(); cleanupErr != nil {
			logger.Error("Backend cleanup error", "error", cleanupErr)
		}
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	logger.Info("Worker stopped gracefully")
}
