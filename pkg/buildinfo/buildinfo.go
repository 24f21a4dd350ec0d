// Package buildinfo reports the flowsketch version.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/flowsketch/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/flowsketch/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/flowsketch/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Binaries installed with go install carry no ldflags; for those Version
// falls back to the module version recorded by the toolchain.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		Version = moduleVersion(info, Version)
	}
}

// moduleVersion returns the main module version unless it is a
// placeholder.
func moduleVersion(info *debug.BuildInfo, fallback string) string {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return fallback
}

// String returns the build information on three lines.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the cobra version template.
func Template() string {
	return "{{.Name}} " + String() + "\n"
}
