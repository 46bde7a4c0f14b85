// Package version contains build information for regiontrace.
package version

var (
	// Version is the release of the binary, set with -ldflags.
	Version = "dev"
	// BuildTime is the time when the binary was built.
	BuildTime = "unknown"
	// GitCommit is the git commit hash of the build.
	GitCommit = "unknown"
)
