package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name        string
		info        Info
		build       debug.BuildInfo
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "link-time values win",
			info:        Info{Version: "v1.2.3", GitCommit: "0123456789abcdef"},
			build:       debug.BuildInfo{Main: debug.Module{Version: "v0.0.1"}, Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "fedcba9876543210"}}},
			wantVersion: "v1.2.3",
			wantCommit:  "0123456789abcdef",
		},
		{
			name:        "module version from go install",
			info:        Info{Version: "dev", GitCommit: "unknown"},
			build:       debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}},
			wantVersion: "v0.4.0",
			wantCommit:  "unknown",
		},
		{
			name: "development build",
			info: Info{Version: "dev", GitCommit: "unknown"},
			build: debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abcdef0123456789"},
				{Key: "vcs.modified", Value: "true"},
			}},
			wantVersion: "dev-abcdef0",
			wantCommit:  "abcdef0123456789",
			wantDirty:   true,
		},
		{
			name:        "nothing known",
			info:        Info{Version: "dev", GitCommit: "unknown"},
			build:       debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			got := info.merge(&tt.build)
			assert.Equal(t, tt.wantVersion, got.Version)
			assert.Equal(t, tt.wantCommit, got.GitCommit)
			assert.Equal(t, tt.wantDirty, got.Dirty)
		})
	}
}

func TestShortAndString(t *testing.T) {
	release := &Info{Version: "v1.2.3", GitCommit: "0123456789abcdef", GoVersion: "go1.24.4", Platform: "linux/amd64"}
	assert.True(t, release.IsRelease())
	assert.Equal(t, "v1.2.3 (0123456)", release.Short())
	assert.Equal(t, "grow v1.2.3 (0123456) go1.24.4 linux/amd64", release.String())

	dev := &Info{Version: "dev-0123456", GitCommit: "0123456789abcdef", Dirty: true, GoVersion: "go1.24.4", Platform: "linux/amd64"}
	assert.False(t, dev.IsRelease())
	assert.Equal(t, "dev-0123456", dev.Short())
	assert.Contains(t, dev.String(), "(dirty)")
}

func TestDetailed(t *testing.T) {
	info := &Info{
		Version:   "v1.0.0",
		GitCommit: "unknown",
		BuildTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "darwin/arm64",
	}
	lines := strings.Split(info.Detailed(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Version: v1.0.0", lines[0])
	assert.Equal(t, "Built: 2024-03-01T12:00:00Z", lines[1])
	assert.Equal(t, "Build type: release", lines[4])
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T12:00:00Z", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-03-01T12:00:00", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-03-01 12:00:00", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"unknown", time.Time{}},
		{"", time.Time{}},
		{"yesterday", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseTime(tt.in)))
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
