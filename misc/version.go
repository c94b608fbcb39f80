// Package misc keeps build time information.
package misc

import "runtime/debug"

// Set with -ldflags "-X stylepipe/misc.version=... -X stylepipe/misc.gitHash=..."
var (
	appName = "stylepipe"
	version = "dev"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash program was built from, falling back to
// VCS information recorded by the go tool.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
