package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "0123456789abcdef0123456789abcdef"

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"main.css", "main-" + testHash + ".css"},
		{"css/main.min.css", "css/main-" + testHash + ".min.css"},
		{"LICENSE", "LICENSE-" + testHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.name, testHash)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.name, StripFingerprint(got))
		})
	}
	assert.Equal(t, "plain.css", StripFingerprint("plain.css"))
}

func TestHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Hash([]byte("hello")))
}

func TestAddStatic(t *testing.T) {
	r := newRouter()
	cfg := StaticConfig{
		StaticDir:     "/source/static/",
		ServeAt:       "/static/",
		Fingerprinted: true,
		Localization: &StaticLocalization{
			StaticDir: "/source/intl/{locale}/",
			ServeAt:   "/:locale/static/",
		},
	}
	files := []StaticFile{
		{PodPath: "/source/static/css/main.min.css", Hash: testHash},
		{PodPath: "/source/intl/de/logo.png", Locale: "de", Hash: testHash},
	}
	require.NoError(t, r.AddStatic(cfg, files))

	route, _, ok := r.Match("/static/css/main-" + testHash + ".min.css")
	require.True(t, ok)
	assert.True(t, route.IsConcrete())
	assert.Equal(t, "/source/static/css/main.min.css", route.Meta.PodPath)

	route, _, ok = r.Match("/de/static/logo-" + testHash + ".png")
	require.True(t, ok)
	assert.Equal(t, "de", route.Meta.Locale)

	route, params, ok := r.Match("/fr/static/other.png")
	require.True(t, ok)
	assert.Equal(t, true, route.Meta.Options[OptionLocalized])
	assert.Equal(t, Params{"locale": "fr", "filename": "other.png"}, params)
	assert.Equal(t, "/source/intl/{locale}", route.Meta.Option(OptionSource))

	route, params, ok = r.Match("/static/new.js")
	require.True(t, ok)
	assert.Equal(t, "/source/static", route.Meta.Option(OptionSource))
	assert.Equal(t, "new.js", params["filename"])
}
