// Package version exposes the build metadata stamped into the cardrail
// binary. Release builds override the variables below via -ldflags -X; a
// binary built any other way reports itself as a dev build.
package version

import (
	"fmt"
	"runtime"
)

var (
	release = "dev"
	commit  = "none"
	builtAt = "unknown"
)

// Info is the build metadata surfaced by the version command and the
// health endpoint
type Info struct {
	Release   string `json:"release"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get snapshots the build metadata of the running binary
func Get() Info {
	return Info{
		Release:   release,
		Commit:    commit,
		BuiltAt:   builtAt,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line banner printed by `cardrail version`
func (i Info) String() string {
	return fmt.Sprintf("cardrail %s (commit %s, built %s)", i.Release, i.Commit, i.BuiltAt)
}
