// Package config provides configuration types and defaults for hotswap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/hotswap/internal/infrastructure/storage"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/paths"
	"github.com/zjrosen/hotswap/internal/tracing"
)

// Config holds all configuration options for hotswap.
type Config struct {
	Registry RegistryConfig  `mapstructure:"registry"`
	Store    StoreConfig     `mapstructure:"store"`
	Watch    WatchConfig     `mapstructure:"watch"`
	Entries  []EntryConfig   `mapstructure:"entries"`
	Tracing  tracing.Config  `mapstructure:"tracing"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Flags    map[string]bool `mapstructure:"flags"`
}

// RegistryConfig controls history retention.
type RegistryConfig struct {
	// MaxRollbackDepth bounds the in-memory undo stack. It is read on every
	// swap, so edits to the config file apply from the next swap on.
	MaxRollbackDepth int `mapstructure:"max_rollback_depth"`

	// ResumeHistory persists each entry's version log so it survives restarts.
	ResumeHistory bool `mapstructure:"resume_history"`
}

// StoreConfig selects and locates the artifact store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file (default), sqlite, badger, bolt
	Dir     string `mapstructure:"dir"`
	DBPath  string `mapstructure:"db_path"` // sqlite/bolt file; defaults to a file under dir
}

// WatchConfig controls automatic reloads in serve mode.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// EntryConfig declares a file-backed entry registered at startup.
type EntryConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

// Storage converts the store section into backend options.
func (s StoreConfig) Storage() storage.Config {
	return storage.Config{
		Backend: s.Backend,
		Dir:     paths.ResolveStoreDir(s.Dir),
		DBPath:  paths.ExpandHome(s.DBPath),
	}
}

// DefaultTracesFilePath returns ~/.config/hotswap/traces/traces.jsonl or ""
// if the home dir is unavailable.
func DefaultTracesFilePath() string {
	dir := paths.UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Registry: RegistryConfig{
			MaxRollbackDepth: 1,
			ResumeHistory:    false,
		},
		Store: StoreConfig{
			Backend: storage.BackendFile,
			Dir:     paths.ResolveStoreDir(""),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Tracing: tc,
	}
}

// SetDefaults registers Defaults() on v so unset keys resolve.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("registry.max_rollback_depth", d.Registry.MaxRollbackDepth)
	v.SetDefault("registry.resume_history", d.Registry.ResumeHistory)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("store.db_path", d.Store.DBPath)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func Validate(cfg Config) error {
	if cfg.Registry.MaxRollbackDepth < 0 {
		return fmt.Errorf("registry.max_rollback_depth must be >= 0, got %d", cfg.Registry.MaxRollbackDepth)
	}
	if err := ValidateStore(cfg.Store); err != nil {
		return err
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	if err := ValidateEntries(cfg.Entries); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateStore checks the store section.
func ValidateStore(s StoreConfig) error {
	if err := storage.ValidateBackend(s.Backend); err != nil {
		return fmt.Errorf("store.backend: %w", err)
	}
	return nil
}

// ValidateEntries requires a unique name and a path for every entry.
func ValidateEntries(entries []EntryConfig) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("entry %d: name is required", i)
		}
		if e.Path == "" {
			return fmt.Errorf("entry %d (%s): path is required", i, e.Name)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("entry %d: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}
	switch tc.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}
	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# hotswap configuration

registry:
  # Values kept for in-memory rollback per entry. Read on every swap, so
  # editing this while "hotswap serve" runs takes effect immediately.
  max_rollback_depth: 1
  # Persist each entry's version log to the store so history survives restarts.
  resume_history: false

# Where archived versions live.
store:
  backend: file           # file (default), sqlite, badger, or bolt
  dir: .hotswap/artifacts
  # db_path: .hotswap/artifacts.db   # sqlite/bolt database file

# Reload file-backed entries when their files change (serve mode).
watch:
  enabled: true
  debounce: 200ms

# Entries registered from files at startup.
# entries:
#   - name: greeter
#     path: modules/greeter.yaml

# Prometheus endpoint for serve mode; empty disables it.
# metrics:
#   addr: localhost:9464

# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/hotswap/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0

# Feature flags
# flags:
#   reload-diff: true   # shell prints a patch after each reload
#   event-log: true     # serve logs every registry event
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
