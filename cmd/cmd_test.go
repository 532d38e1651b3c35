package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it printed to
// stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// newPod initializes an example pod in a temporary working directory.
func newPod(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	initMinimal, initForce = false, false
	out, _, err := execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized pod in .")
	return dir
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"build", "extract", "init", "routes", "serve", "version"}
	have := make(map[string]*cobra.Command)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = c
	}
	for _, name := range want {
		c, ok := have[name]
		require.True(t, ok, "command %s", name)
		assert.NotNil(t, c.RunE)
	}

	for _, flag := range []string{"config", "root", "env", "log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(func() { versionFormat, versionShort = "text", false })

	out, _, err := execute(t, "version", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "grow ")

	out, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "is_release")

	_, _, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := newPod(t)

	for _, name := range []string{"podspec.yaml", ".grow.yml", "views/base.html", "content/pages/index.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	_, _, err := execute(t, "init")
	assert.Error(t, err, "an existing pod is not overwritten")

	_, _, err = execute(t, "init", "--force")
	assert.NoError(t, err)
}

func TestInitCommandWithDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	initMinimal, initForce = false, false
	t.Cleanup(func() { initMinimal = false })

	out, _, err := execute(t, "init", "site", "--minimal")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized pod in site")
	assert.FileExists(t, filepath.Join("site", "podspec.yaml"))
	assert.NoFileExists(t, filepath.Join("site", "views", "base.html"))
}

func TestBuildCommand(t *testing.T) {
	dir := newPod(t)

	out, _, err := execute(t, "build", "--quiet", "--clean", "--out", "dist")
	require.NoError(t, err)
	assert.Contains(t, out, "dist")

	index, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Hello, grow")
	assert.FileExists(t, filepath.Join(dir, "dist", "about", "index.html"))
}

func TestRoutesCommand(t *testing.T) {
	newPod(t)

	out, _, err := execute(t, "routes", "--format", "json", "--kind", "")
	require.NoError(t, err)

	var entries []routeEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	byPath := make(map[string]routeEntry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	require.Contains(t, byPath, "/")
	assert.Equal(t, "doc", byPath["/"].Kind)
	assert.Equal(t, "/content/pages/index.md", byPath["/"].PodPath)
	require.Contains(t, byPath, "/about/")
	assert.Equal(t, "/content/pages/about.md", byPath["/about/"].PodPath)

	out, _, err = execute(t, "routes", "--format", "json", "--kind", "doc")
	require.NoError(t, err)
	entries = nil
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	for _, e := range entries {
		assert.Equal(t, "doc", e.Kind, e.Path)
	}

	out, _, err = execute(t, "routes", "--format", "text", "--kind", "")
	require.NoError(t, err)
	assert.Contains(t, out, "POD PATH")
	assert.Contains(t, out, "/content/pages/about.md")

	_, _, err = execute(t, "routes", "--format", "yaml")
	assert.Error(t, err)
}

func TestExtractCommand(t *testing.T) {
	dir := newPod(t)

	out, _, err := execute(t, "extract", "--update=false")
	require.NoError(t, err)
	assert.Contains(t, out, "/translations/messages.pot")
	assert.FileExists(t, filepath.Join(dir, "translations", "messages.pot"))
}
