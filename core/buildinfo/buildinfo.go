// Package buildinfo carries the version stamped into the binary with
//
//	-ldflags "-X github.com/m3rciful/sessionbot/core/buildinfo.Version=v0.3.0
//	          -X github.com/m3rciful/sessionbot/core/buildinfo.Commit=abcdef0
//	          -X github.com/m3rciful/sessionbot/core/buildinfo.Date=2026-10-01T12:00:00Z"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC3339; empty for local builds.
	Date = ""
)

// String renders the build as "version (commit, date)", skipping empty parts.
func String() string {
	var meta []string
	for _, v := range []string{Commit, Date} {
		if v = strings.TrimSpace(v); v != "" {
			meta = append(meta, v)
		}
	}
	if len(meta) == 0 {
		return Version
	}
	return Version + " (" + strings.Join(meta, ", ") + ")"
}
