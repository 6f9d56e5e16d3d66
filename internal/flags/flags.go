// Package flags provides feature flags read from the config file.
// A Registry is read-only after construction and reports false for any flag
// it does not know.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/hotswap/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagReloadDiff makes the shell print a patch against the previous
	// version after every successful reload.
	FlagReloadDiff = "reload-diff"

	// FlagEventLog makes serve log every registry event it receives.
	FlagEventLog = "event-log"
)

// Known lists every flag the binary reads.
var Known = []string{FlagReloadDiff, FlagEventLog}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map. A nil map disables every flag.
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: maps.Clone(flags)}
	if r.flags == nil {
		r.flags = make(map[string]bool)
	}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.flags)
	for _, name := range r.Unknown() {
		log.Warn(log.CatConfig, "Unknown feature flag in config", "flag", name)
	}
	return r
}

// Enabled reports whether name is set to true. Nil-safe.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of all configured flags.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return make(map[string]bool)
	}
	return maps.Clone(r.flags)
}

// Unknown returns configured flag names the binary never reads, sorted.
// They are usually typos.
func (r *Registry) Unknown() []string {
	if r == nil {
		return nil
	}
	var out []string
	for name := range r.flags {
		if !slices.Contains(Known, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
