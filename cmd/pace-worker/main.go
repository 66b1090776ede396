package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"pace/internal/cli"
	"pace/internal/export"
	gexport "pace/internal/export/google"
	"pace/internal/ledger"
	applog "pace/internal/log"
	"pace/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting pace-worker")

	store := cli.InitStore(logger, cfg.SQLiteDBPath)
	defer store.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	var exporter export.TransactionExporter
	if cfg.SheetsExportEnabled() {
		client, err := gexport.NewClient(context.Background(), cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	svc := ledger.NewService(store, nil)
	auditWorker := worker.NewAuditWorker(svc, amqpClient, exporter, cfg.AuditInterval, cfg.AuditBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
