// Package cli provides common initialization shared by cmd/outlay and
// cmd/outlay-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"outlay/internal/backend"
	"outlay/internal/config"
	applog "outlay/internal/log"
	"outlay/internal/storage"
)

// SetupLogger initializes structured logging with default settings and sets
// it as the process default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore creates the configured persistence backend.
// Returns the store or exits the process on failure.
func InitStore(cfg *config.Config, logger *applog.Logger) storage.Store {
	store, err := backend.New(cfg, slog.Default())
	if err != nil {
		logger.Error("Failed to initialize storage backend",
			"error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return store
}
