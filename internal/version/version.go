// Package version holds build metadata, set with -ldflags -X.
package version

import "fmt"

var (
	// Version is the semantic version.
	Version = "0.1.0"

	// BuildTime is the UTC build time.
	BuildTime = "unknown"

	// GitCommit is the source revision.
	GitCommit = "unknown"
)

// String formats all three fields on one line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
