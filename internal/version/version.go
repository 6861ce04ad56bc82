// Package version holds build-time identification for cvs2svn-go's
// binaries, populated via -ldflags at build time the way the teacher's
// dropped p4prometheus/version dependency was. Unset fields default to
// "unknown" so a `go build` without ldflags still produces a usable
// --version string.
package version

import "fmt"

var (
	Version   = "unknown"
	Revision  = "unknown"
	Branch    = "unknown"
	BuildDate = "unknown"
)

// Print returns a one-line identification string for program, in the
// form main.go's --version flag (via kingpin's Version()) displays.
func Print(program string) string {
	return fmt.Sprintf("%s, version %s (branch: %s, revision: %s)\n  build date: %s",
		program, Version, Branch, Revision, BuildDate)
}

// String is an alias for Print("cvs2svn-go"), for callers that don't
// need to name a specific binary.
func String() string {
	return Print("cvs2svn-go")
}
