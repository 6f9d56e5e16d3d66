// Package storage selects and opens an artifact backend.
package storage

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/infrastructure/badger"
	"github.com/zjrosen/hotswap/internal/infrastructure/bolt"
	"github.com/zjrosen/hotswap/internal/infrastructure/filestore"
	"github.com/zjrosen/hotswap/internal/infrastructure/sqlite"
	"github.com/zjrosen/hotswap/internal/log"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Backends lists every supported backend name.
var Backends = []string{BackendFile, BackendSQLite, BackendBadger, BackendBolt}

// Config selects a backend and where it keeps its data.
type Config struct {
	// Backend is one of Backends. Empty means file.
	Backend string
	// Dir is the base directory for the file and badger backends.
	Dir string
	// DBPath is the database file for sqlite and bolt. Defaults to a file in Dir.
	DBPath string
	// InMemory opens badger without touching disk.
	InMemory bool
}

// ValidateBackend reports whether name is a known backend.
func ValidateBackend(name string) error {
	if name == "" || slices.Contains(Backends, name) {
		return nil
	}
	return fmt.Errorf("unknown store backend %q (expected one of: %s)", name, strings.Join(Backends, ", "))
}

// Open constructs the configured backend.
func Open(cfg Config) (artifact.Store, error) {
	if err := ValidateBackend(cfg.Backend); err != nil {
		return nil, err
	}
	backend := cfg.Backend
	if backend == "" {
		backend = BackendFile
	}
	log.Info(log.CatStore, "opening artifact store", "backend", backend, "dir", cfg.Dir)

	var (
		s   artifact.Store
		err error
	)
	switch backend {
	case BackendSQLite:
		s, err = asStore(sqlite.Open(dbPath(cfg, "artifacts.db")))
	case BackendBadger:
		switch {
		case cfg.InMemory:
			s, err = asStore(badger.Open(badger.InMemoryConfig()))
		case cfg.Dir == "":
			err = fmt.Errorf("badger backend requires a store directory")
		default:
			s, err = asStore(badger.Open(badger.DefaultConfig(cfg.Dir)))
		}
	case BackendBolt:
		s, err = asStore(bolt.Open(dbPath(cfg, "artifacts.bolt")))
	default:
		s, err = asStore(filestore.New(cfg.Dir))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// asStore keeps a failed constructor's typed nil out of the interface.
func asStore[S artifact.Store](s S, err error) (artifact.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func dbPath(cfg Config, name string) string {
	if cfg.DBPath != "" {
		return cfg.DBPath
	}
	return filepath.Join(cfg.Dir, name)
}
