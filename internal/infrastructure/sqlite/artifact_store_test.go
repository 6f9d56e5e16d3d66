package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/testutil"
)

func openTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestArtifactStore_Conformance(t *testing.T) {
	testutil.RunStoreConformance(t, func(t *testing.T) artifact.Store {
		return openTestStore(t)
	})
}

func TestArtifactStore_PayloadCompressedAtRest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = 'a'
	}
	require.NoError(t, s.Put(ctx, "big@1", payload))

	var stored int
	require.NoError(t, s.db.conn.QueryRow("SELECT length(payload) FROM artifacts WHERE key = 'big@1'").Scan(&stored))
	require.Less(t, stored, len(payload)/10)

	infos, err := s.List(ctx, "big@")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, int64(stored), infos[0].Size)
}

func TestArtifactStore_ListPrefixIsCaseSensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "Greeter@1", []byte("upper")))
	require.NoError(t, s.Put(ctx, "greeter@1", []byte("lower")))

	infos, err := s.List(ctx, "greeter@")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "greeter@1", infos[0].Key)
}

func TestArtifactStore_CreatedAtFromClock(t *testing.T) {
	s := openTestStore(t)
	fixed := time.UnixMilli(1_700_000_000_123)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Put(context.Background(), "clock@1", []byte("x")))
	infos, err := s.List(context.Background(), "clock@")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.True(t, fixed.Equal(infos[0].CreatedAt))
}

func TestArtifactStore_CorruptRowIsStorageError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.db.conn.Exec("INSERT INTO artifacts (key, payload, created_at) VALUES ('bad@1', x'DEADBEEF', 1)")
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "bad@1")
	require.ErrorIs(t, err, artifact.ErrStorageIO)
}

func TestArtifactStore_ClosedStoreRejectsOperations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second Close is a no-op")

	ctx := context.Background()
	require.ErrorIs(t, s.Put(ctx, "k@1", []byte("x")), artifact.ErrClosed)
	_, _, err = s.Get(ctx, "k@1")
	require.ErrorIs(t, err, artifact.ErrClosed)
	_, err = s.List(ctx, "")
	require.ErrorIs(t, err, artifact.ErrClosed)
}

func TestArtifactStore_EmptyKeyRejected(t *testing.T) {
	s := openTestStore(t)
	require.ErrorIs(t, s.Put(context.Background(), "", []byte("x")), artifact.ErrInvalidKey)
}
