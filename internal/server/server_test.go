package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/podfs"
	"github.com/conneroisu/grow/internal/watcher"
)

var testPod = map[string]string{
	"/podspec.yaml":                  "localization:\n  default_locale: en\n  locales: [en, de]\n",
	"/content/pages/_blueprint.yaml": "$path: /{base}/\n$view: page.html\n$localization:\n  path: /{locale}/{base}/\n",
	"/content/pages/intro.md":        "---\n$title: Intro\n---\nHello\n",
	"/content/pages/broken.md":       "---\n$title: Broken\n$view: broken.html\n---\n",
	"/views/page.html":               `<html><body><h1>{{ .Doc.Title }}</h1>{{ .Body }}</body></html>`,
	"/views/broken.html":             `<p>{{ .Doc.Missing }}</p>`,
}

func newTestServer(t *testing.T, files map[string]string, extensions ...hooks.Extension) (*Server, *pod.Pod) {
	t.Helper()
	store := podfs.NewMemory()
	for name, content := range files {
		require.NoError(t, store.WriteFile(name, []byte(content)))
	}
	p, err := pod.New(store, pod.Options{Env: "dev", Dev: true, Extensions: extensions})
	require.NoError(t, err)
	require.NoError(t, p.LoadRoutes(context.Background()))

	cfg := &config.Config{
		Pod:         config.PodConfig{Root: t.TempDir()},
		Server:      config.ServerConfig{Host: "localhost", Port: 0},
		Cache:       config.CacheConfig{FileCacheSize: 16},
		Development: config.DevelopmentConfig{Debounce: 10 * time.Millisecond},
	}
	s, err := New(p, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, p
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServePage(t *testing.T) {
	s, _ := newTestServer(t, testPod)
	h := s.Handler(context.Background())

	rec := get(t, h, "/de/intro/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Intro</h1>")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "de", rec.Header().Get(HeaderLocale))
	assert.Equal(t, "/content/pages/intro.md", rec.Header().Get(HeaderPodPath))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(t, h, "/de/intro/", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = get(t, h, "/intro")
	assert.Equal(t, http.StatusOK, rec.Code, "paths without a trailing slash still match")
}

func TestServeErrors(t *testing.T) {
	s, _ := newTestServer(t, testPod)
	h := s.Handler(context.Background())

	tests := []struct {
		name     string
		path     string
		status   int
		contains []string
	}{
		{
			name:     "unmatched path",
			path:     "/nowhere/",
			status:   http.StatusNotFound,
			contains: []string{"404", "/nowhere/"},
		},
		{
			name:     "render failure",
			path:     "/broken/",
			status:   http.StatusInternalServerError,
			contains: []string{"500", "/content/pages/broken.md", "doc", "Missing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}

	reports := s.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, "/content/pages/broken.md", reports[0].PodPath)
}

func TestFileChangeInvalidatesPages(t *testing.T) {
	s, p := newTestServer(t, testPod)
	ctx := context.Background()
	h := s.Handler(ctx)

	require.Contains(t, get(t, h, "/intro/").Body.String(), "Hello")
	require.Equal(t, 1, s.pages.Len())

	require.NoError(t, p.Store().WriteFile("/content/pages/intro.md", []byte("---\n$title: Intro\n---\nUpdated\n")))
	assert.Contains(t, get(t, h, "/intro/").Body.String(), "Hello", "served from the page cache")

	require.NoError(t, s.handleFileChanges(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, PodPath: "/content/pages/intro.md"},
	}))
	assert.Equal(t, 0, s.pages.Len())
	assert.Contains(t, get(t, h, "/intro/").Body.String(), "Updated")

	require.NoError(t, p.Store().WriteFile("/views/page.html", []byte(`<p>{{ .Doc.Title }}</p>`)))
	require.NoError(t, s.handleFileChanges(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, PodPath: "/views/page.html"},
	}))
	assert.Equal(t, "<p>Intro</p>", get(t, h, "/intro/").Body.String())
}

func TestAffectsAllPages(t *testing.T) {
	tests := []struct {
		podPath  string
		expected bool
	}{
		{"/podspec.yaml", true},
		{"/content/pages/_blueprint.yaml", true},
		{"/content/pages/_routes.yaml", true},
		{"/views/base.html", true},
		{"/translations/de/LC_MESSAGES/messages.po", true},
		{"/content/pages/intro.md", false},
		{"/source/static/main.css", false},
	}
	for _, tt := range tests {
		t.Run(tt.podPath, func(t *testing.T) {
			assert.Equal(t, tt.expected, affectsAllPages(tt.podPath))
		})
	}
}

func TestDevHooks(t *testing.T) {
	var messages []UpdateMessage
	ext := hooks.NewExtension("test:dev", map[hooks.Key]hooks.Hook{
		hooks.DevHandler: hooks.Func(func(_ context.Context, previous any, args ...any) (any, error) {
			mux := args[0].(*http.ServeMux)
			mux.HandleFunc("/_ext/ping", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "pong")
			})
			return previous, nil
		}),
		hooks.DevManagerMessage: hooks.Func(func(_ context.Context, previous any, _ ...any) (any, error) {
			msg := previous.(UpdateMessage)
			messages = append(messages, msg)
			msg.Content = "rebuilt"
			return msg, nil
		}),
	})
	s, _ := newTestServer(t, testPod, ext)
	ctx := context.Background()

	rec := get(t, s.Handler(ctx), "/_ext/ping")
	assert.Equal(t, "pong", rec.Body.String())

	require.NoError(t, s.handleFileChanges(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, PodPath: "/content/pages/intro.md"},
	}))
	require.Len(t, messages, 1)
	assert.Equal(t, "reload", messages[0].Type)
	assert.Equal(t, []string{"/content/pages/intro.md"}, messages[0].Paths)

	select {
	case data := <-s.broadcast:
		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "rebuilt", msg.Content)
	default:
		t.Fatal("no message queued for broadcast")
	}
}

func TestReloadSocket(t *testing.T) {
	s, _ := newTestServer(t, testPod)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runWebSocketHub(ctx)

	ts := httptest.NewServer(s.Handler(ctx))
	defer ts.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+ReloadPath, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.handleFileChanges(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, PodPath: "/content/pages/intro.md"},
	}))

	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"/content/pages/intro.md"}, msg.Paths)
}

func TestHealthAndRoutes(t *testing.T) {
	s, _ := newTestServer(t, testPod)
	h := s.Handler(context.Background())

	rec := get(t, h, HealthPath)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	// Two documents in two locales plus the abstract default static route.
	assert.EqualValues(t, 5, health["routes"])

	rec = get(t, h, RoutesPath)
	require.Equal(t, http.StatusOK, rec.Code)
	var routes []routeInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	var patterns []string
	for _, r := range routes {
		patterns = append(patterns, r.Pattern)
	}
	assert.ElementsMatch(t, []string{"/intro/", "/de/intro/", "/broken/", "/de/broken/", "/static/:filename"}, patterns)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, testPod)
	s.config.Server.AllowedOrigins = []string{"http://localhost:3000"}
	h := s.Handler(context.Background())

	rec := get(t, h, "/intro/", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/intro/", "Origin", "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	assert.Equal(t, []string{"localhost:3000"}, s.originPatterns())
}

func TestCleanRequestPath(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"/intro/":       "/intro/",
		"/a/../intro/":  "/intro/",
		"//static/x.js": "/static/x.js",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanRequestPath(in), in)
	}
}
