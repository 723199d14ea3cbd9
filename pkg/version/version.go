// Package version exposes the build version stamped into the binary.
package version

import "runtime/debug"

// stamped is set for release builds with
// -ldflags "-X github.com/maestro-ai/maestro/pkg/version.stamped=<v>".
var stamped string

// Version is the release stamp, the short VCS revision, or "dev".
var Version = resolve()

func resolve() string {
	if stamped != "" {
		return stamped
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 8 {
				return s.Value[:8]
			}
		}
	}
	return "dev"
}

// Full is the "maestro/<version>" form used in logs and version output.
func Full() string { return "maestro/" + Version }
