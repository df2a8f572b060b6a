package bytecode

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

const regExpFlags = "dgimsuy"

// RegExp is a regular expression literal as it appears in the module
// regexp table. Two literals with the same pattern and flags share an id.
type RegExp struct {
	Pattern string
	Flags   string
}

// String returns the literal form, e.g. /ab+c/gi.
func (r RegExp) String() string {
	return "/" + r.Pattern + "/" + r.Flags
}

// CompileRegExp validates an ECMAScript regular expression literal and
// returns its table form. Flags must be drawn from "dgimsuy" without
// repetition.
func CompileRegExp(pattern, flags string) (RegExp, error) {
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	// The s flag has no regexp2 equivalent in ECMAScript mode; only the
	// pattern syntax is checked for it.
	for i, f := range flags {
		if !strings.ContainsRune(regExpFlags, f) {
			return RegExp{}, fmt.Errorf("invalid regexp flag %q", f)
		}
		if strings.ContainsRune(flags[i+1:], f) {
			return RegExp{}, fmt.Errorf("duplicate regexp flag %q", f)
		}
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		}
	}
	if _, err := regexp2.Compile(pattern, opts); err != nil {
		return RegExp{}, fmt.Errorf("invalid regexp /%s/: %w", pattern, err)
	}
	return RegExp{Pattern: pattern, Flags: flags}, nil
}

// ParseRegExpLiteral splits a literal of the form /pattern/flags and
// compiles it.
func ParseRegExpLiteral(lit string) (RegExp, error) {
	if len(lit) < 2 || lit[0] != '/' {
		return RegExp{}, fmt.Errorf("invalid regexp literal %q", lit)
	}
	end := strings.LastIndexByte(lit, '/')
	if end == 0 {
		return RegExp{}, fmt.Errorf("invalid regexp literal %q", lit)
	}
	return CompileRegExp(lit[1:end], lit[end+1:])
}
