package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/infrastructure/codec"
	"github.com/zjrosen/hotswap/internal/log"
)

// ArtifactStore implements artifact.Store on the artifacts table.
type ArtifactStore struct {
	db     *DB
	codec  *codec.Codec
	now    func() time.Time
	closed atomic.Bool
}

// Ensure ArtifactStore implements artifact.Store.
var _ artifact.Store = (*ArtifactStore)(nil)

func newArtifactStore(db *DB, c *codec.Codec) *ArtifactStore {
	return &ArtifactStore{db: db, codec: c, now: time.Now}
}

// Open opens the database at path and returns its artifact store.
func Open(path string) (*ArtifactStore, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, artifact.IOError("open", path, err)
	}
	s, err := db.ArtifactStore()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ArtifactStore) check(ctx context.Context, key string) error {
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

// Put upserts the compressed payload in a single statement.
func (s *ArtifactStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	m := artifactModel{
		Key:       key,
		Payload:   s.codec.Compress(payload),
		CreatedAt: s.now().UnixMilli(),
	}
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO artifacts (key, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, m.Key, m.Payload, m.CreatedAt)
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	log.Debug(log.CatStore, "stored artifact", "backend", "sqlite", "key", key, "bytes", len(payload))
	return nil
}

// Get returns the decompressed payload for key.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}
	var blob []byte
	err := s.db.conn.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}
	payload, err := s.codec.Decompress(blob)
	if err != nil {
		return nil, false, artifact.IOError("get", key, err)
	}
	return payload, true, nil
}

// Delete removes key if present.
func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM artifacts WHERE key = ?`, key); err != nil {
		return artifact.IOError("delete", key, err)
	}
	return nil
}

// List returns keys starting with prefix in key order. instr is used instead
// of LIKE, which is case-insensitive for ASCII.
func (s *ArtifactStore) List(ctx context.Context, prefix string) ([]artifact.Info, error) {
	if s.closed.Load() {
		return nil, artifact.ErrClosed
	}
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT key, payload, created_at FROM artifacts
		WHERE instr(key, ?) = 1
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, artifact.IOError("list", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var infos []artifact.Info
	for rows.Next() {
		var m artifactModel
		if err := rows.Scan(&m.Key, &m.Payload, &m.CreatedAt); err != nil {
			return nil, artifact.IOError("list", prefix, err)
		}
		infos = append(infos, m.toInfo())
	}
	if err := rows.Err(); err != nil {
		return nil, artifact.IOError("list", prefix, err)
	}
	return infos, nil
}

// Close closes the underlying database. Calling it twice is a no-op.
func (s *ArtifactStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
