package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectBanner(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"document", "<!DOCTYPE html><html><head><title>x</title></head><body><h1>Hi</h1></body></html>"},
		{"fragment", "<h1>Hi</h1>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := InjectBanner([]byte(tt.content), BannerInfo{
				PodPath:    "/content/pages/intro.md",
				Locale:     "de",
				ReloadPath: ReloadPath,
			})
			require.NoError(t, err)
			html := string(out)
			assert.Contains(t, html, "<h1>Hi</h1>")
			assert.Contains(t, html, `id="grow-dev-banner"`)
			assert.Contains(t, html, "/content/pages/intro.md (de)")
			assert.Contains(t, html, `"/_grow/ws"`)
			assert.Contains(t, html, "</script></body>")
		})
	}
}

func TestInjectBannerEscapesLabel(t *testing.T) {
	out, err := InjectBanner([]byte("<body></body>"), BannerInfo{PodPath: "/content/<x>.md"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "/content/&lt;x&gt;.md")
	assert.NotContains(t, string(out), "<script>")
}

func TestDevUIExtension(t *testing.T) {
	s, _ := newTestServer(t, testPod, NewDevUIExtension(ReloadPath))
	h := s.Handler(context.Background())

	rec := get(t, h, "/intro/")
	assert.Contains(t, rec.Body.String(), "<h1>Intro</h1>")
	assert.Contains(t, rec.Body.String(), `id="grow-dev-banner"`)
	assert.Contains(t, rec.Body.String(), "/content/pages/intro.md")
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML("<!DOCTYPE html><html></html>"))
	assert.True(t, looksLikeHTML("  <html lang=en>"))
	assert.False(t, looksLikeHTML("<h1>fragment</h1>"))
	assert.False(t, looksLikeHTML(`{"json": true}`))
}
