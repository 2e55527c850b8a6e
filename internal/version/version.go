// Package version carries build metadata stamped in with -ldflags -X.
package version

import "fmt"

var (
	// Version is the release version of the gaze service.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the metadata on one line for -version output.
func String() string {
	return fmt.Sprintf("gaze %s (%s, built %s)", Version, GitSHA, BuildTime)
}
