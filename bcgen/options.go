package bcgen

import "github.com/rs/zerolog"

// Options control module generation.
type Options struct {
	// OptimizationEnabled packs the string storage by sharing common
	// substrings and uses the compact integer encoding in literal buffers.
	OptimizationEnabled bool

	// StripDebugInfo drops debug locations and variable names from the
	// generated functions.
	StripDebugInfo bool

	// StripFunctionNames replaces every function name with a fixed
	// placeholder.
	StripFunctionNames bool

	// CJSModuleOffset is the id of the first statically resolved CommonJS
	// module registered with this generator.
	CJSModuleOffset uint32

	// Logger receives relocation and generation events.
	Logger zerolog.Logger
}

// DefaultOptions returns options with optimization enabled and logging
// disabled.
func DefaultOptions() Options {
	return Options{
		OptimizationEnabled: true,
		Logger:              zerolog.Nop(),
	}
}

// strippedFunctionName replaces function names when StripFunctionNames is
// set.
const strippedFunctionName = "function-name-stripped"
