package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"outlay/internal/amqp"
	"outlay/internal/cli"
	applog "outlay/internal/log"
	"outlay/internal/sheets"
	gsheet "outlay/internal/sheets/google"
	"outlay/internal/worker"
)

const rematchInterval = 10 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting outlay-worker")

	store := cli.InitStore(cfg, logger)
	defer store.Close()

	// Google Sheets mirror is optional.
	var mirror sheets.ExpenseMirror
	if cfg.SheetsMirrorEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	importWorker := worker.NewImportWorker(store, mirror)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on expenses imported while the worker was down.
	if matched, err := importWorker.RematchUncategorized(ctx); err != nil {
		logger.Error("Startup rematch failed", "error", err)
	} else if matched > 0 {
		logger.Info("Startup rematch categorized expenses", "count", matched)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeImportCompleted(gctx, func(msg *amqp.ImportCompletedMessage) error {
			return importWorker.HandleImportCompleted(gctx, msg)
		})
	})
	g.Go(func() error {
		// Backstop for lost messages: rematch on a timer regardless of events.
		ticker := time.NewTicker(rematchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				matched, err := importWorker.RematchUncategorized(gctx)
				if err != nil {
					logger.Error("Periodic rematch failed", "error", err)
					continue
				}
				if matched > 0 {
					logger.Info("Periodic rematch categorized expenses", "count", matched)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
