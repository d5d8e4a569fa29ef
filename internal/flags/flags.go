// Package flags provides feature flag support for optional rolodex behavior.
// Flags are read-only after initialization and provide safe defaults for unknown flags.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/rolodex/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagMemoryOnly keeps the registry in memory only. No SQLite database is opened.
	FlagMemoryOnly = "memory-only"

	// FlagIdempotency makes POST /contacts replay the result for a repeated Idempotency-Key.
	FlagIdempotency = "idempotency"

	// FlagReloadOnChange makes `rolodex serve` reload the registry when the
	// database file is changed by another process.
	FlagReloadOnChange = "reload-on-change"
)

var descriptions = map[string]string{
	FlagMemoryOnly:     "keep contacts in memory only, skip SQLite",
	FlagIdempotency:    "honor Idempotency-Key on POST /contacts",
	FlagReloadOnChange: "reload when the database file changes on disk",
}

// Known returns the names of all flags rolodex understands, sorted.
func Known() []string {
	return slices.Sorted(maps.Keys(descriptions))
}

// Describe returns the one-line description of a known flag.
func Describe(name string) (string, bool) {
	d, ok := descriptions[name]
	return d, ok
}

// Registry holds feature flag state loaded from configuration.
// Flags are read-only after initialization.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map.
// If flags is nil, an empty registry is created (all flags disabled).
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: make(map[string]bool, len(flags))}
	maps.Copy(r.flags, flags)
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(r.flags), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags (safe default).
// Returns false when called on nil registry (nil-safe).
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
