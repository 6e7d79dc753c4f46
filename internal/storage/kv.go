// Package storage persists the session collection in a small key/value store.
package storage

import (
	"fmt"
	"path/filepath"

	"github.com/diogo/nanogenius/internal/config"
)

// KV is a durable string key/value store
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Close() error
}

// SQLiteFile is the database name used by the sqlite backend
const SQLiteFile = "nanogenius.db"

// Open returns the KV backend selected by cfg
func Open(cfg config.Config) (KV, error) {
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = config.StorageFile
	}

	if backend == config.StorageMemory {
		return NewMemoryKV(), nil
	}

	dir, err := config.StorageDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}

	switch backend {
	case config.StorageFile:
		return NewFileKV(filepath.Join(dir, "store"))
	case config.StorageSQLite:
		return NewSQLiteKV(filepath.Join(dir, SQLiteFile))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
