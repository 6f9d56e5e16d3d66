// Package badger implements an embedded key-value artifact backend on
// BadgerDB. Each value is a CBOR envelope holding the compressed payload and
// its creation time.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/infrastructure/codec"
	"github.com/zjrosen/hotswap/internal/log"
)

// keyPrefix namespaces artifact keys inside the database.
const keyPrefix = "artifact/"

// Config configures a badger store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in RAM; used by tests and the scratch shell.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is how often value-log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultConfig returns production settings for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for an ephemeral store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// envelope is the stored value.
type envelope struct {
	Payload   []byte `cbor:"1,keyasint"`
	CreatedAt int64  `cbor:"2,keyasint"`
}

// Store is the badger backend.
type Store struct {
	db     *badger.DB
	codec  *codec.Codec
	gc     *gcRunner
	now    func() time.Time
	closed atomic.Bool
}

// Ensure Store implements artifact.Store.
var _ artifact.Store = (*Store)(nil)

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, artifact.IOError("open", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, artifact.IOError("open", cfg.Path, err)
	}

	c, err := codec.Default()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, codec: c, now: time.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio)
		s.gc.start()
	}
	log.Debug(log.CatStore, "badger store ready", "path", cfg.Path, "in_memory", cfg.InMemory)
	return s, nil
}

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func (s *Store) check(ctx context.Context, key string) error {
	if s.closed.Load() {
		return artifact.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", artifact.ErrInvalidKey)
	}
	return nil
}

// Put stores payload under key in one transaction.
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	value, err := cbor.Marshal(envelope{
		Payload:   s.codec.Compress(payload),
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), value)
	})
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	log.Debug(log.CatStore, "stored artifact", "backend", "badger", "key", key, "bytes", len(payload))
	return nil
}

// Get returns the payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}

	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}
	payload, err := s.codec.Decompress(env.Payload)
	if err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}
	return payload, true, nil
}

// Delete removes key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
	if err != nil {
		return artifact.IOError("delete", key, err)
	}
	return nil
}

// List iterates keys under prefix. Badger iterates in byte order, which is
// the same order as Go string comparison.
func (s *Store) List(ctx context.Context, prefix string) ([]artifact.Info, error) {
	if s.closed.Load() {
		return nil, artifact.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []artifact.Info
	p := dbKey(prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var env envelope
			if err := item.Value(func(v []byte) error {
				return cbor.Unmarshal(v, &env)
			}); err != nil {
				return err
			}
			infos = append(infos, artifact.Info{
				Key:       string(item.Key()[len(keyPrefix):]),
				Size:      int64(len(env.Payload)),
				CreatedAt: time.UnixMilli(env.CreatedAt),
			})
		}
		return nil
	})
	if err != nil {
		return nil, artifact.IOError("list", prefix, err)
	}
	return infos, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}
