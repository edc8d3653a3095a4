// Package version carries build metadata stamped in via -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the human-readable line printed by `voxdrop version`.
func String() string {
	return "voxdrop " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies voxdrop to the backend.
func UserAgent() string {
	return "voxdrop/" + Version
}
