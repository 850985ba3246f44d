// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = ""
)

// GetInfo renders the build metadata on one line.
func GetInfo() string {
	info := fmt.Sprintf("%s (commit %s, %s)", Version, Commit, runtime.Version())
	if BuildTime != "" {
		info += " built " + BuildTime
	}
	return info
}
