// Package version reports the grow build: the release set through -ldflags
// or, for go install and development builds, the module and VCS settings
// embedded by the toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Program is the name printed in front of versions.
const Program = "grow"

// Set at build time with
//
//	-ldflags "-X github.com/conneroisu/grow/internal/version.Version=v1.2.3"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes a grow binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	Dirty     bool      `json:"dirty"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get merges the link-time variables with the embedded build settings.
// Link-time values win.
func Get() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return info.merge(bi)
}

func (i *Info) merge(bi *debug.BuildInfo) *Info {
	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if i.GitCommit == "" || i.GitCommit == "unknown" {
		if rev, ok := settings["vcs.revision"]; ok {
			i.GitCommit = rev
		}
	}
	if i.BuildTime.IsZero() {
		i.BuildTime = parseTime(settings["vcs.time"])
	}
	i.Dirty = settings["vcs.modified"] == "true"
	if i.Version == "" || i.Version == "dev" {
		switch {
		case bi.Main.Version != "" && bi.Main.Version != "(devel)":
			i.Version = bi.Main.Version
		case len(i.GitCommit) >= 7 && i.GitCommit != "unknown":
			i.Version = "dev-" + i.GitCommit[:7]
		default:
			i.Version = "dev"
		}
	}
	return i
}

// IsRelease reports whether the version names a release rather than a
// development build.
func (i *Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}

// Short is the version with the abbreviated commit, e.g. "v1.2.3 (abc1234)".
func (i *Info) Short() string {
	commit := i.shortCommit()
	if commit == "" || !i.IsRelease() {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, commit)
}

// String is the one-line form printed by "grow version".
func (i *Info) String() string {
	var b strings.Builder
	b.WriteString(Program + " " + i.Short())
	if i.Dirty {
		b.WriteString(" (dirty)")
	}
	fmt.Fprintf(&b, " %s %s", i.GoVersion, i.Platform)
	return b.String()
}

// Detailed lists every known field, one per line.
func (i *Info) Detailed() string {
	lines := []string{"Version: " + i.Version}
	if i.GitCommit != "unknown" && i.GitCommit != "" {
		lines = append(lines, "Commit: "+i.GitCommit)
	}
	if !i.BuildTime.IsZero() {
		lines = append(lines, "Built: "+i.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	if i.Dirty {
		lines = append(lines, "Working directory: dirty")
	}
	if i.IsRelease() {
		lines = append(lines, "Build type: release")
	} else {
		lines = append(lines, "Build type: development")
	}
	return strings.Join(lines, "\n")
}

func (i *Info) shortCommit() string {
	if len(i.GitCommit) < 7 || i.GitCommit == "unknown" {
		return ""
	}
	return i.GitCommit[:7]
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime returns the zero time for values in no known layout.
func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
