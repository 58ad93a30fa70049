// Package version reports which fserve build is running.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
//
//	go build -ldflags "-X fserve/internal/version.Version=1.0.0 -X fserve/internal/version.Commit=abc123"
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		Commit, BuildDate = fromBuildSettings(info.Settings, Commit, BuildDate)
	}
}

// fromBuildSettings fills commit and date from the VCS stamp the go tool
// embeds, keeping the given values when a setting is absent.
func fromBuildSettings(settings []debug.BuildSetting, commit, date string) (string, string) {
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			date = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && commit != "unknown" {
		commit += "-dirty"
	}
	return commit, date
}

// Info returns the version, followed by the short commit when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns multi-line version information for `fserve version`.
func Full() string {
	return "fserve version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}
