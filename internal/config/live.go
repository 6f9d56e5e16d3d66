package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/zjrosen/hotswap/internal/log"
)

// KeyMaxRollbackDepth is the viper key of the undo bound.
const KeyMaxRollbackDepth = "registry.max_rollback_depth"

// DepthSource reads the undo bound from v on every call, so a reloaded config
// file changes the bound without a restart. Negative values count as zero.
func DepthSource(v *viper.Viper) func() int {
	return func() int {
		return max(v.GetInt(KeyMaxRollbackDepth), 0)
	}
}

// WatchFile re-reads the config file on change and hands the decoded result
// to onChange. An invalid edit is logged and skipped; v keeps serving the
// raw values it read, but onChange only ever sees a valid Config.
func WatchFile(v *viper.Viper, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Load(v)
		if err != nil {
			log.Warn(log.CatConfig, "ignoring invalid config change", "path", e.Name, "error", err)
			return
		}
		log.Info(log.CatConfig, "config reloaded", "path", e.Name,
			"max_rollback_depth", cfg.Registry.MaxRollbackDepth)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
