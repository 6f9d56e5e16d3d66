// Package bolt implements a single-file artifact backend on bbolt. Values are
// msgpack envelopes in one bucket.
package bolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/infrastructure/codec"
	"github.com/zjrosen/hotswap/internal/log"
)

var artifactsBucket = []byte("artifacts")

// openTimeout bounds the wait for the file lock held by another process.
const openTimeout = time.Second

type envelope struct {
	Payload   []byte `msgpack:"payload"`
	CreatedAt int64  `msgpack:"created_at"`
}

// Store is the bbolt backend.
type Store struct {
	db     *bolt.DB
	codec  *codec.Codec
	now    func() time.Time
	closed atomic.Bool
}

// Ensure Store implements artifact.Store.
var _ artifact.Store = (*Store)(nil)

// Open opens (creating if needed) the bbolt file at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, artifact.IOError("open", path, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, artifact.IOError("open", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, artifact.IOError("open", path, err)
	}

	c, err := codec.Default()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug(log.CatStore, "bolt store ready", "path", path)
	return &Store{db: db, codec: c, now: time.Now}, nil
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

// Put stores payload under key.
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	value, err := msgpack.Marshal(&envelope{
		Payload:   s.codec.Compress(payload),
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactsBucket).Put([]byte(key), value)
	})
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	log.Debug(log.CatStore, "stored artifact", "backend", "bolt", "key", key, "bytes", len(payload))
	return nil
}

// Get returns the payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}
	var (
		env   envelope
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(artifactsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		// msgpack copies byte slices, so env outlives the transaction.
		return msgpack.Unmarshal(v, &env)
	})
	if err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}
	if !found {
		return nil, false, nil
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
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(artifactsBucket).Delete([]byte(key))
	})
	if err != nil {
		return artifact.IOError("delete", key, err)
	}
	return nil
}

// List walks the bucket cursor from prefix. Bolt keys are byte-sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]artifact.Info, error) {
	if s.closed.Load() {
		return nil, artifact.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []artifact.Info
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(artifactsBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var env envelope
			if err := msgpack.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			infos = append(infos, artifact.Info{
				Key:       string(k),
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

// Close closes the database file.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
