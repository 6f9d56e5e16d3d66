// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProjectDir is the per-project directory holding config and artifacts.
	ProjectDir = ".hotswap"

	// ConfigFile is the config file name in every lookup location.
	ConfigFile = "config.yaml"
)

// ProjectConfigPath returns .hotswap/config.yaml relative to the working
// directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectDir, ConfigFile)
}

// UserConfigDir returns ~/.config/hotswap, or "" when the home directory is
// unavailable.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hotswap")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResolveStoreDir resolves the artifact directory from user input.
//
//   - "" -> ".hotswap/artifacts"
//   - "~/x" -> "$HOME/x"
//   - relative paths are cleaned but stay relative
func ResolveStoreDir(dir string) string {
	if dir == "" {
		return filepath.Join(ProjectDir, "artifacts")
	}
	return filepath.Clean(ExpandHome(dir))
}
