// Package cli provides small helpers shared by the vmasm command's verbs.
package cli

import (
	"log"
	"strings"
)

// DefaultOutput is the output path used when build's -o flag is absent
// and no manifest output overrides it.
const DefaultOutput = "a.vmc"

// ResolveOutput returns out if non-empty, else DefaultOutput.
func ResolveOutput(out string) string {
	if out == "" {
		return DefaultOutput
	}
	return out
}

// Verbosef logs via log.Printf only when verbose is true, matching the
// reference CLI's convention of gating status messages behind -v.
func Verbosef(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	log.Printf(format, args...)
}

// BinName returns the program's invocation name for usage messages,
// stripping any directory prefix.
func BinName(argv0 string) string {
	parts := strings.Split(argv0, "/")
	return parts[len(parts)-1]
}
