package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outlay/internal/amqp"
	"outlay/internal/cli"
	apphttp "outlay/internal/http"
	applog "outlay/internal/log"
	"outlay/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(cfg, logger)
	defer store.Close()

	// AMQP is optional; imports still work without the event pipeline.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	importer := services.NewImportService(store, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, store, importer, apphttp.Options{
		CacheSize:      cfg.CacheSize,
		CacheTTL:       cfg.CacheTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting outlay server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
