// Package filestore implements the flat-file artifact backend: one compressed
// file per key inside a base directory.
package filestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/infrastructure/codec"
	"github.com/zjrosen/hotswap/internal/log"
)

const (
	fileExt = ".zst"
	tmpGlob = ".tmp-*"
	// maxNameLen keeps encoded names under the common 255-byte filename limit.
	maxNameLen = 240
)

// keyEncoding is injective, so distinct keys never share a file.
var keyEncoding = base64.RawURLEncoding

// Store is the file backend. It assumes a single writer process.
type Store struct {
	dir   string
	codec *codec.Codec
}

// Ensure Store implements artifact.Store.
var _ artifact.Store = (*Store)(nil)

// New opens (creating if needed) a file store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filestore: base directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, artifact.IOError("init", dir, err)
	}
	c, err := codec.Default()
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatStore, "file store ready", "dir", dir)
	return &Store{dir: dir, codec: c}, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.dir }

// FileName returns the deterministic file name used for key.
func FileName(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", artifact.ErrInvalidKey)
	}
	name := keyEncoding.EncodeToString([]byte(key)) + fileExt
	if len(name) > maxNameLen {
		return "", fmt.Errorf("%w: key too long (%d bytes)", artifact.ErrInvalidKey, len(key))
	}
	return name, nil
}

func keyFromFileName(name string) (string, bool) {
	if !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	raw, err := keyEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *Store) path(key string) (string, error) {
	name, err := FileName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Put writes the compressed payload to a temp file and renames it into place
// so readers never observe a partial write.
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tmpGlob)
	if err != nil {
		return artifact.IOError("put", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(s.codec.Compress(payload)); err != nil {
		_ = tmp.Close()
		cleanup()
		return artifact.IOError("put", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return artifact.IOError("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return artifact.IOError("put", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return artifact.IOError("put", key, err)
	}

	log.Debug(log.CatStore, "stored artifact", "backend", "file", "key", key, "bytes", len(payload))
	return nil
}

// Get reads and decompresses the payload for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	target, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	blob, err := os.ReadFile(target) //nolint:gosec // G304: path derived from encoded key inside store dir
	if errors.Is(err, fs.ErrNotExist) {
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

// Delete removes the file for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return artifact.IOError("delete", key, err)
	}
	return nil
}

// List scans the base directory for keys starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]artifact.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, artifact.IOError("list", prefix, err)
	}

	infos := make([]artifact.Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := keyFromFileName(e.Name())
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		infos = append(infos, artifact.Info{Key: key, Size: fi.Size(), CreatedAt: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Close is a no-op; the file backend holds no open handles.
func (s *Store) Close() error { return nil }
