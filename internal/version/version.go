// Package version carries build metadata stamped in with -ldflags -X.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version string
	Commit  string
	Date    string
	Go      string
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("redbridge %s (commit=%s, date=%s, go=%s)", i.Version, i.Commit, i.Date, i.Go)
}

func String() string {
	return Current().String()
}
