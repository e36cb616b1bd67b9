// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/user/sort-media/pkg/version.Version=1.4.0"
package version

import "fmt"

var (
	Version   = "1.4.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
