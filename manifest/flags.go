package manifest

import (
	"regexp"
	"strings"
)

// Flags selects debug information to strip from rewritten classes.
type Flags uint8

const (
	NoLineNumbers Flags = 1 << iota
	NoModuleVersions
	NoSourceNames
	NoSourceExt
	NoNamedLocals
	NoNamedParams

	NoDebug = NoLineNumbers | NoModuleVersions | NoSourceNames | NoSourceExt | NoNamedLocals | NoNamedParams
)

// Has reports whether every bit of o is set.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// Mode is how a build treats classes that are already up to date.
type Mode int

const (
	// Lazy skips classes whose output is current.
	Lazy Mode = iota
	// Force rewrites every selected class.
	Force
	// Skip does not run at all.
	Skip
)

var words = map[string]Flags{
	"NO_DEBUG":             NoDebug,
	"NO_NAMED_PARAMETERS":  NoNamedParams,
	"NO_NAMED_PARAMS":      NoNamedParams,
	"NO_NAMED_LOCALS":      NoNamedLocals,
	"NO_SOURCE":            NoSourceExt | NoSourceNames,
	"NO_SOURCE_NAMES":      NoSourceNames,
	"NO_SOURCE_NAME":       NoSourceNames,
	"NO_SOURCE_EXT":        NoSourceExt,
	"NO_SOURCE_EXTENSION":  NoSourceExt,
	"NO_SOURCE_EXTENSIONS": NoSourceExt,
	"NO_MODULE_VERSION":    NoModuleVersions,
	"NO_MODULE_VERSIONS":   NoModuleVersions,
	"NO_LINE_NUMBERS":      NoLineNumbers,
}

var separators = regexp.MustCompile(`[\s-]`)

// Normalize maps a flag word onto its canonical spelling: whitespace and
// dashes become underscores and letters are upper-cased.
func Normalize(word string) string {
	return strings.ToUpper(separators.ReplaceAllString(word, "_"))
}

// ParseFlags reads the flag vocabulary. Words it does not know are returned
// as unknown; a skip word ends parsing.
func ParseFlags(list []string) (flags Flags, mode Mode, unknown []string) {
	for _, w := range list {
		switch n := Normalize(w); n {
		case "FORCE_COMPILE", "FORCE_RECOMPILE":
			mode = Force
		case "NO_COMPILE", "NO_RECOMPILE", "SKIP_COMPILE", "SKIP_RECOMPILE":
			return flags, Skip, unknown
		default:
			if f, ok := words[n]; ok {
				flags |= f
			} else {
				unknown = append(unknown, w)
			}
		}
	}
	return flags, mode, unknown
}
