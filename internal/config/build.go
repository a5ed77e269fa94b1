package config

import "runtime/debug"

// Set with -ldflags at release time:
//
//	go build -ldflags "-X buildnotify/internal/config.version=1.2.3 \
//	    -X buildnotify/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X buildnotify/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// NewBuildInfo returns the linker-injected metadata. Without ldflags, the
// commit and build time fall back to the VCS stamp the go tool embeds.
func NewBuildInfo() BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if info.Commit != "none" {
		return info
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 12 {
				s.Value = s.Value[:12]
			}
			info.Commit = s.Value
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}
