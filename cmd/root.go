package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/hotswap/internal/config"
	"github.com/zjrosen/hotswap/internal/log"
	"github.com/zjrosen/hotswap/internal/paths"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
	v         = viper.New()

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "hotswap",
	Short: "Live-object registry with hot-swap handles and versioned rollback",
	Long: `hotswap keeps named, long-lived references to implementations loaded from
module files (YAML, TOML, JSON, CUE). Reloading a module swaps the
implementation behind every handle at once, and every version is archived
so it can be rolled back later.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .hotswap/config.yaml, then ~/.config/hotswap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (path from HOTSWAP_LOG, default debug.log)")
	rootCmd.PersistentFlags().String("store-backend", "", "artifact store backend: file, sqlite, badger, bolt")
	rootCmd.PersistentFlags().String("store-dir", "", "artifact store directory")
	rootCmd.PersistentFlags().Int("max-rollback-depth", 0, "values kept for in-memory rollback")

	_ = v.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store-backend"))
	_ = v.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store-dir"))
	_ = v.BindPFlag(config.KeyMaxRollbackDepth, rootCmd.PersistentFlags().Lookup("max-rollback-depth"))
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	return initConfig()
}

func initLogging() error {
	if os.Getenv("HOTSWAP_DEBUG") == "" && !debugFlag {
		return nil
	}
	logPath := os.Getenv("HOTSWAP_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	log.Info(log.CatConfig, "hotswap starting", "version", version, "logPath", logPath)
	return nil
}

func initConfig() error {
	config.SetDefaults(v)
	v.SetEnvPrefix("HOTSWAP")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .hotswap/config.yaml (current directory)
		// 2. ~/.config/hotswap/config.yaml (user config)
		if _, err := os.Stat(paths.ProjectConfigPath()); err == nil {
			v.SetConfigFile(paths.ProjectConfigPath())
		} else {
			if dir := paths.UserConfigDir(); dir != "" {
				v.AddConfigPath(dir)
			}
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		log.Debug(log.CatConfig, "no config file, using defaults")
	}

	loaded, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	return nil
}

// configPath is the file config edits are written to.
func configPath() string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return paths.ProjectConfigPath()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}
