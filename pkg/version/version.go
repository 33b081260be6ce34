// Package version reports the build revision shown in the startup log
// and the health endpoint. An -ldflags override wins over VCS build
// info; without either the version is "dev".
package version

import "runtime/debug"

// AppName prefixes every version string.
const AppName = "councild"

// gitCommitOverride is set via -ldflags for container builds where no
// .git directory is present. Empty means no override.
var gitCommitOverride string

// GitCommit is the short commit hash (8 chars), or "dev" when build
// info is unavailable.
var GitCommit = initGitCommit()

func initGitCommit() string {
	if gitCommitOverride != "" {
		return shorten(gitCommitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shorten(s.Value)
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "councild/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
