// Package buildinfo carries values stamped in at link time:
//
//	go build -ldflags "-X github.com/m3rciful/earlybot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/earlybot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/earlybot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the short source revision.
	Commit = "local"
	// Date is the build time in RFC3339.
	Date = ""
)

// String renders the build as "version (commit, date)".
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
