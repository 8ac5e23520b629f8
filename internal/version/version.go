// Package version carries build metadata stamped in via -ldflags.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set at build time:
//
//	-ldflags "-X .../internal/version.Version=v1.2.3 ..."
var (
	Version   = "dev"
	CommitID  = "unknown"
	BuildTime = "unknown"
)

// Info is the structured version report printed by the version command.
type Info struct {
	Version   string
	CommitID  string
	BuildTime string
	GoVersion string
	Platform  string
}

// Get assembles the version report for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		CommitID:  CommitID,
		BuildTime: formatBuildTime(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("vidgrab version %s, build %s (%s, %s, %s)",
		i.Version, i.CommitID, i.BuildTime, i.GoVersion, i.Platform)
}

func formatBuildTime() string {
	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}
	return t.Format("Mon Jan 2 15:04:05 2006")
}
