package version

import "fmt"

var (
	// Version is the release tag. Set with -ldflags at build time.
	Version = "dev"
	// Commit is the source revision the binary was built from.
	Commit = "unknown"
	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("dugout-pulse %s (commit %s, built %s)", Version, Commit, BuildDate)
}
