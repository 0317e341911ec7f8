// Package version carries build identification stamped in via ldflags.
package version

var (
	// Version is the semantic version of the agentnet binary.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// String renders the build identity on one line.
func String() string {
	return Version + " (" + Commit + ", " + BuildDate + ")"
}
