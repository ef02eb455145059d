// Package config implements spec.md §6's recognized environment
// toggles, loaded through struct tags the way the rest of the pack does
// (mstoykov/envconfig, used throughout grafana/k6's cloudapi and cmd
// packages) rather than hand-rolled os.Getenv calls.
package config

import "github.com/mstoykov/envconfig"

// Config mirrors spec.md §6's "Environment / configuration (recognized
// toggles with their effects)" list field-for-field.
type Config struct {
	// EnableJIT: if false, every request interprets.
	EnableJIT bool `envconfig:"TLJIT_ENABLE_JIT" default:"true"`

	// TransCounters adds a per-translation increment for coverage.
	TransCounters bool `envconfig:"TLJIT_TRANSCOUNTERS" default:"false"`

	// NoGDB skips debug-info emission.
	NoGDB bool `envconfig:"TLJIT_NO_GDB" default:"false"`

	// EnableRenameFunction and AttrDynamicInvoke enable prologue
	// interception on matching functions (spec.md §4.5's "intercepted
	// prologues").
	EnableRenameFunction bool `envconfig:"TLJIT_ENABLE_RENAME_FUNCTION" default:"false"`
	AttrDynamicInvoke    bool `envconfig:"TLJIT_ATTR_DYNAMIC_INVOKE" default:"false"`

	// Trampolines routes helper calls through the trampoline arena
	// (internal/codecache.Arena) instead of direct calls.
	Trampolines bool `envconfig:"TLJIT_TRAMPOLINES" default:"true"`

	// CmovVarDeref emits a cmov rather than a branch when dereferencing
	// a possibly-boxed value.
	CmovVarDeref bool `envconfig:"TLJIT_CMOV_VAR_DEREF" default:"false"`

	// CheckReturnTypeHints and CheckPropTypeHints are compile-time
	// policy on whether a type-hint violation fails hard or only warns.
	CheckReturnTypeHints bool `envconfig:"TLJIT_CHECK_RETURN_TYPE_HINTS" default:"false"`
	CheckPropTypeHints   bool `envconfig:"TLJIT_CHECK_PROP_TYPE_HINTS" default:"false"`
}

// Load reads Config from the process environment, applying the defaults
// above for anything unset.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
