// Package version reports the sshkex release and build information.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Semantic version components.
const (
	// Major is the major version (breaking changes).
	Major = 0
	// Minor is the minor version (new features).
	Minor = 1
	// Patch is the patch version (bug fixes).
	Patch = 0
	// Label is the optional pre-release label.
	Label = ""
)

// String returns the full version string.
func String() string {
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Full returns the version followed by VCS and toolchain details when the
// binary carries build info.
func Full() string {
	parts := []string{"sshkex " + String()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		parts = append(parts, buildDetails(bi)...)
	}
	return strings.Join(parts, ", ")
}

func buildDetails(bi *debug.BuildInfo) []string {
	var out []string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev := s.Value
			if len(rev) > 9 {
				rev = rev[:9]
			}
			out = append(out, rev)
		case "vcs.time":
			out = append(out, s.Value)
		}
	}
	if bi.GoVersion != "" {
		out = append(out, bi.GoVersion)
	}
	return out
}
