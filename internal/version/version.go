// Package version reports which droidboot revision is running. The
// bootloader prints it at startup and answers "getvar version" with it.
package version

import (
	"runtime/debug"
	"strings"
)

// Version can be set at link time (-ldflags=-X) for builds without VCS
// information, e.g. inside an Android build tree.
var Version string

func readParts() (revision string, modified, ok bool) {
	if Version != "" {
		return Version, false, true
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, false
	}
	settings := make(map[string]string)
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	if rev, ok := settings["vcs.revision"]; ok {
		return rev, settings["vcs.modified"] == "true", true
	}
	// Module builds carry a pseudo-version like
	// v0.0.0-20230107144322-7a5757f46310.
	v := info.Main.Version
	if idx := strings.LastIndexByte(v, '-'); idx > -1 {
		return v[idx+1:], false, true
	}
	if v != "" && v != "(devel)" {
		return v, false, true
	}
	return "", false, false
}

func suffix(modified bool, s string) string {
	if modified {
		return s
	}
	return ""
}

// Read returns a link to the droidboot revision.
func Read() string {
	revision, modified, ok := readParts()
	if !ok {
		return "unknown revision"
	}
	return "https://github.com/gokrazy/droidboot/commit/" + revision + suffix(modified, " (modified)")
}

// ReadBrief returns a short revision string like g7a5757+.
func ReadBrief() string {
	revision, modified, ok := readParts()
	if !ok {
		return "unknown"
	}
	if len(revision) > 6 {
		revision = revision[:6]
	}
	return "g" + revision + suffix(modified, "+")
}
