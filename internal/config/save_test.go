package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveEntries_CreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, SaveEntries(path, []EntryConfig{{Name: "greeter", Path: "greeter.yaml"}}))

	_, cfg, err := loadYAML(t, readFile(t, path))
	require.NoError(t, err)
	require.Equal(t, []EntryConfig{{Name: "greeter", Path: "greeter.yaml"}}, cfg.Entries)
}

func TestSaveEntries_PreservesOtherConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := `# my settings
registry:
  max_rollback_depth: 4 # keep four
entries:
  - name: old
    path: old.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	require.NoError(t, SaveEntries(path, []EntryConfig{{Name: "new", Path: "new.yaml"}}))

	content := readFile(t, path)
	require.Contains(t, content, "# my settings")
	require.Contains(t, content, "# keep four")
	require.NotContains(t, content, "old.yaml")

	_, cfg, err := loadYAML(t, content)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Registry.MaxRollbackDepth)
	require.Equal(t, []EntryConfig{{Name: "new", Path: "new.yaml"}}, cfg.Entries)
}

func TestAddEntry_AppendsAndRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	existing := []EntryConfig{{Name: "a", Path: "a.yaml"}}
	require.NoError(t, AddEntry(path, EntryConfig{Name: "b", Path: "b.yaml"}, existing))

	_, cfg, err := loadYAML(t, readFile(t, path))
	require.NoError(t, err)
	require.Equal(t, []EntryConfig{{Name: "a", Path: "a.yaml"}, {Name: "b", Path: "b.yaml"}}, cfg.Entries)
	require.True(t, strings.HasPrefix(readFile(t, path), "# hotswap configuration"))

	err = AddEntry(path, EntryConfig{Name: "a", Path: "other.yaml"}, cfg.Entries)
	require.ErrorContains(t, err, "duplicate name")
}

func TestRemoveEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	existing := []EntryConfig{{Name: "a", Path: "a.yaml"}, {Name: "b", Path: "b.yaml"}}
	require.NoError(t, SaveEntries(path, existing))

	require.NoError(t, RemoveEntry(path, "a", existing))
	_, cfg, err := loadYAML(t, readFile(t, path))
	require.NoError(t, err)
	require.Equal(t, []EntryConfig{{Name: "b", Path: "b.yaml"}}, cfg.Entries)

	require.ErrorContains(t, RemoveEntry(path, "ghost", cfg.Entries), "no entry named")
}

func TestSaveEntries_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveEntries(path, []EntryConfig{{Name: "a", Path: "a.yaml"}}))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "config.yaml", files[0].Name())
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
