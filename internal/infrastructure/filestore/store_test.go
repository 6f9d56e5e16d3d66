package filestore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/testutil"
)

func TestStore_Conformance(t *testing.T) {
	testutil.RunStoreConformance(t, func(t *testing.T) artifact.Store {
		s, err := New(filepath.Join(t.TempDir(), "artifacts"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

// TestNew_CreatesDirectory verifies that New creates nested directories with 0700.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "artifacts")

	_, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}

	_, err = New(dir)
	require.NoError(t, err, "initialization is idempotent")
}

func TestNew_RequiresDirectory(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestFileName_DeterministicAndDistinct(t *testing.T) {
	a1, err := FileName("greeter@1")
	require.NoError(t, err)
	a2, err := FileName("greeter@1")
	require.NoError(t, err)
	b, err := FileName("greeter@2")
	require.NoError(t, err)

	require.Equal(t, a1, a2)
	require.NotEqual(t, a1, b)
	require.NotContains(t, a1, "/")
	require.True(t, strings.HasSuffix(a1, ".zst"))
}

func TestFileName_RejectsUnrepresentableKeys(t *testing.T) {
	_, err := FileName("")
	require.ErrorIs(t, err, artifact.ErrInvalidKey)

	_, err = FileName(strings.Repeat("k", 400))
	require.ErrorIs(t, err, artifact.ErrInvalidKey)
}

func TestPut_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "k@1", []byte("payload")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, strings.HasPrefix(entries[0].Name(), ".tmp-"))
}

func TestGet_CorruptFileIsStorageError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	name, err := FileName("bad@1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("garbage"), 0o600))

	_, _, err = s.Get(context.Background(), "bad@1")
	require.ErrorIs(t, err, artifact.ErrStorageIO)
}

func TestPut_UnusableDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = s.Put(context.Background(), "k@1", []byte("x"))
	require.ErrorIs(t, err, artifact.ErrStorageIO)
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600))
	require.NoError(t, s.Put(context.Background(), "k@1", []byte("x")))

	infos, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "k@1", infos[0].Key)
}
