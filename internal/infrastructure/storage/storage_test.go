package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/infrastructure/badger"
	"github.com/zjrosen/hotswap/internal/infrastructure/bolt"
	"github.com/zjrosen/hotswap/internal/infrastructure/filestore"
	"github.com/zjrosen/hotswap/internal/infrastructure/sqlite"
)

func TestOpen_SelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    any
	}{
		{"", &filestore.Store{}},
		{BackendFile, &filestore.Store{}},
		{BackendSQLite, &sqlite.ArtifactStore{}},
		{BackendBadger, &badger.Store{}},
		{BackendBolt, &bolt.Store{}},
	}
	for _, tt := range tests {
		t.Run("backend="+tt.backend, func(t *testing.T) {
			s, err := Open(Config{Backend: tt.backend, Dir: t.TempDir()})
			require.NoError(t, err)
			defer s.Close()
			require.IsType(t, tt.want, s)

			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "probe@1", []byte("ok")))
			got, found, err := s.Get(ctx, "probe@1")
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "ok", string(got))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "redis", Dir: t.TempDir()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown store backend")
}

func TestOpen_ExplicitDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom", "store.db")
	s, err := Open(Config{Backend: BackendSQLite, DBPath: path})
	require.NoError(t, err)
	defer s.Close()
	require.FileExists(t, path)
}

func TestOpen_BadgerInMemory(t *testing.T) {
	s, err := Open(Config{Backend: BackendBadger, InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_FileRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
