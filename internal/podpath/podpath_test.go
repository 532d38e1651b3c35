package podpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLocale(t *testing.T) {
	tests := []struct {
		in     string
		root   string
		locale string
	}{
		{"/content/pages/intro@fr.md", "/content/pages/intro.md", "fr"},
		{"/content/pages/intro.md", "/content/pages/intro.md", ""},
		{"/content/pages/intro@.md", "/content/pages/intro@.md", ""},
		{"/content/pages/@fr.md", "/content/pages/@fr.md", ""},
		{"/content/pages/a@b@de_DE.yaml", "/content/pages/a@b.yaml", "de_DE"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			root, locale := SplitLocale(tt.in)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.locale, locale)
		})
	}
}

func TestLocalizedPath(t *testing.T) {
	assert.Equal(t, "/content/pages/intro@fr.md", LocalizedPath("/content/pages/intro.md", "fr"))
	assert.Equal(t, "/content/pages/intro@fr.md", LocalizedPath("/content/pages/intro@de.md", "fr"))
	assert.Equal(t, "/content/pages/intro.md", LocalizedPath("/content/pages/intro@de.md", ""))
}

func TestCleanAndHelpers(t *testing.T) {
	assert.Equal(t, "/content/pages", Clean("content/pages/"))
	assert.Equal(t, "/content/pages", Dir("/content/pages/intro.md"))
	assert.Equal(t, "intro", BaseName("/content/pages/intro@fr.md"))
	assert.True(t, IsBlueprint("/content/pages/_blueprint.yaml"))
	assert.True(t, IsContent("/content/pages/a.md"))
	assert.False(t, IsContent("/contentious/a.md"))
	assert.Equal(t, "sub/a.md", Rel("/content/pages", "/content/pages/sub/a.md"))
}
