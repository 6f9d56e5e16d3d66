package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hotswap/internal/tracing"
)

func loadYAML(t *testing.T, content string) (*viper.Viper, Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	cfg, err := Load(v)
	return v, cfg, err
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, 1, cfg.Registry.MaxRollbackDepth)
	require.False(t, cfg.Registry.ResumeHistory)
	require.Equal(t, "file", cfg.Store.Backend)
	require.Equal(t, filepath.Join(".hotswap", "artifacts"), cfg.Store.Dir)
	require.True(t, cfg.Watch.Enabled)
	require.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	require.False(t, cfg.Tracing.Enabled)
	require.NoError(t, Validate(cfg))
}

func TestLoad_EmptyDocumentUsesDefaults(t *testing.T) {
	_, cfg, err := loadYAML(t, "")
	require.NoError(t, err)
	require.Equal(t, Defaults().Registry, cfg.Registry)
	require.Equal(t, Defaults().Watch, cfg.Watch)
}

func TestLoad_FullDocument(t *testing.T) {
	_, cfg, err := loadYAML(t, `
registry:
  max_rollback_depth: 5
  resume_history: true
store:
  backend: sqlite
  dir: /tmp/artifacts
  db_path: /tmp/artifacts.db
watch:
  enabled: false
  debounce: 750ms
entries:
  - name: greeter
    path: modules/greeter.yaml
  - name: point
    path: modules/point.json
metrics:
  addr: localhost:9464
flags:
  reload-diff: true
`)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Registry.MaxRollbackDepth)
	require.True(t, cfg.Registry.ResumeHistory)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "/tmp/artifacts.db", cfg.Store.DBPath)
	require.False(t, cfg.Watch.Enabled)
	require.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
	require.Equal(t, []EntryConfig{
		{Name: "greeter", Path: "modules/greeter.yaml"},
		{Name: "point", Path: "modules/point.json"},
	}, cfg.Entries)
	require.Equal(t, "localhost:9464", cfg.Metrics.Addr)
	require.True(t, cfg.Flags["reload-diff"])

	sc := cfg.Store.Storage()
	require.Equal(t, "sqlite", sc.Backend)
	require.Equal(t, "/tmp/artifacts", sc.Dir)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"negative depth", "registry:\n  max_rollback_depth: -1\n", "max_rollback_depth"},
		{"unknown backend", "store:\n  backend: s3\n", "store.backend"},
		{"entry without path", "entries:\n  - name: a\n", "path is required"},
		{"entry without name", "entries:\n  - path: a.yaml\n", "name is required"},
		{"duplicate entry", "entries:\n  - {name: a, path: a.yaml}\n  - {name: a, path: b.yaml}\n", "duplicate name"},
		{"sample rate", "tracing:\n  sample_rate: 2\n", "sample_rate"},
		{"exporter", "tracing:\n  exporter: zipkin\n", "tracing.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := loadYAML(t, tt.doc)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateTracing_RequiresExporterSettingsWhenEnabled(t *testing.T) {
	tc := tracing.Config{Enabled: true, Exporter: "file"}
	require.ErrorContains(t, ValidateTracing(tc), "file_path")

	tc = tracing.Config{Enabled: true, Exporter: "otlp"}
	require.ErrorContains(t, ValidateTracing(tc), "otlp_endpoint")

	tc = tracing.Config{Enabled: false, Exporter: "otlp"}
	require.NoError(t, ValidateTracing(tc), "disabled tracing skips path checks")
}

func TestDepthSource_ReadsLiveValue(t *testing.T) {
	v, _, err := loadYAML(t, "registry:\n  max_rollback_depth: 3\n")
	require.NoError(t, err)
	depth := DepthSource(v)
	require.Equal(t, 3, depth())

	v.Set(KeyMaxRollbackDepth, 7)
	require.Equal(t, 7, depth())

	v.Set(KeyMaxRollbackDepth, -4)
	require.Zero(t, depth())
}

func TestWriteDefaultConfig_LoadsAsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, Defaults().Registry, cfg.Registry)
	require.Equal(t, Defaults().Store, cfg.Store)
	require.Equal(t, Defaults().Watch, cfg.Watch)
}

func TestWatchFile_AppliesValidEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  max_rollback_depth: 1\n"), 0o600))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	changes := make(chan Config, 8)
	WatchFile(v, func(cfg Config) { changes <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("registry:\n  max_rollback_depth: 4\n"), 0o600))

	select {
	case cfg := <-changes:
		require.Equal(t, 4, cfg.Registry.MaxRollbackDepth)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
	require.Equal(t, 4, DepthSource(v)())
}
