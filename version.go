package flyapi

import (
	"fmt"
	"runtime"
)

// Build metadata. Commit and BuildDate are set with -ldflags -X.
var (
	Version   = "v0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion formats the build metadata for the version command.
func GetVersion() string {
	return fmt.Sprintf("flyapi version %s, commit %s, built %s with %s",
		Version, GitCommit, BuildDate, GoVersion)
}

// GetVersionInfo returns the build metadata keyed for structured logs.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}
