// Package backend selects and wires the persistence backend from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"outlay/internal/config"
	"outlay/internal/storage"
)

const (
	SQLiteBackend = "sqlite"
	MemoryBackend = "memory"
)

// New creates the configured Store. The caller owns Close.
func New(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.DataBackend {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		logger.Info("Initialized memory backend")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
