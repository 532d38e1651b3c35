package pod

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/podfs"
	"github.com/conneroisu/grow/internal/router"
)

const localizedPodspec = `
localization:
  default_locale: en
  locales: [en, de, fr]
`

func newTestPod(t *testing.T, files map[string]string) *Pod {
	t.Helper()
	store := podfs.NewMemory()
	for name, content := range files {
		require.NoError(t, store.WriteFile(name, []byte(content)))
	}
	p, err := New(store, Options{Env: "dev"})
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, p *Pod, name, content string) {
	t.Helper()
	require.NoError(t, p.Store().WriteFile(name, []byte(content)))
}

func renderPath(t *testing.T, p *Pod, path string) string {
	t.Helper()
	ctx := context.Background()
	c, err := p.Match(ctx, path)
	require.NoError(t, err)
	env, err := p.Pool().Get(c.Locale())
	require.NoError(t, err)
	out, err := c.Render(ctx, env)
	require.NoError(t, err)
	return string(out)
}

func TestMultiFileLocalization(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$localization:\n  path: /{locale}/{base}/\n",
		"/content/pages/intro.md":      "---\nkey: root_value\nroot_key: root_key_value\n---\n# Intro\n",
		"/content/pages/intro@fr.md":   "---\nkey: fr_value\n---\n",
	})

	fr, err := p.GetDoc("/content/pages/intro.md", "fr")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"key": "fr_value", "root_key": "root_key_value"}, fr.Fields())
	assert.Equal(t, "# Intro\n", fr.Body())
	assert.Equal(t, "fr", fr.Locale())

	en, err := p.GetDoc("/content/pages/intro.md", "")
	require.NoError(t, err)
	assert.Equal(t, "root_value", en.Get("key"))
	assert.Equal(t, "en", en.Locale())

	same, err := p.GetDoc("/content/pages/intro.md", "en")
	require.NoError(t, err)
	assert.Same(t, en, same)

	variant, err := p.GetDoc("/content/pages/intro@fr.md", "")
	require.NoError(t, err)
	assert.Same(t, fr, variant)

	assert.Contains(t, p.Cache().Deps.Dependents("/content/pages/intro@fr.md"), "/content/pages/intro.md")
}

func TestLocalizedParts(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/about.yaml": strings.Join([]string{
			"title: About",
			"title@de: Über uns",
			"nested:\n  a: 1\n  b: 2",
			"---",
			"$locale: fr",
			"title: À propos",
			"nested:\n  b: 3",
		}, "\n"),
	})

	de, err := p.GetDoc("/content/pages/about.yaml", "de")
	require.NoError(t, err)
	assert.Equal(t, "Über uns", de.Title())
	assert.Equal(t, "uber-uns", de.Slug())

	fr, err := p.GetDoc("/content/pages/about.yaml", "fr")
	require.NoError(t, err)
	assert.Equal(t, "À propos", fr.Title())
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, fr.Get("nested"))
	assert.Nil(t, fr.Get("$locale"))

	en, err := p.GetDoc("/content/pages/about.yaml", "en")
	require.NoError(t, err)
	assert.Equal(t, "About", en.Title())
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, en.Get("nested"))
}

func TestFrontMatterErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		offset  int
	}{
		{
			name:    "unterminated",
			file:    "/content/pages/open.md",
			content: "---\ntitle: Open\n",
			offset:  0,
		},
		{
			name:    "part without locale",
			file:    "/content/pages/part.yaml",
			content: "title: Base\n---\ntitle: Other\n",
			offset:  15,
		},
		{
			name:    "invalid yaml",
			file:    "/content/pages/bad.md",
			content: "---\ntitle: [unclosed\n---\nbody\n",
			offset:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPod(t, map[string]string{
				"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
				tt.file:                        tt.content,
			})
			_, err := p.GetDoc(tt.file, "")
			require.Error(t, err)
			var fe *errors.FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.file, fe.PodPath)
			assert.Equal(t, tt.offset, fe.Offset)
		})
	}
}

func TestBodyWithoutFrontMatter(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/plain.md":      "# Plain\n\n---\n\nStill body.\n",
	})
	doc, err := p.GetDoc("/content/pages/plain.md", "")
	require.NoError(t, err)
	assert.True(t, doc.HasBody())
	assert.Equal(t, "# Plain\n\n---\n\nStill body.\n", doc.Body())
	assert.Empty(t, doc.Fields())
}

func TestDefaultLocaleOverride(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$localization:\n  default_locale: ja\n",
		"/content/pages/de.yaml":         "$localization:\n  default_locale: de\n",
		"/content/pages/ja.yaml":         "title: Ja\n",
	})

	doc, err := p.GetDoc("/content/pages/de.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "de", doc.DefaultLocale())
	assert.Equal(t, "de", doc.Locale())
	assert.True(t, doc.IsDefaultLocale())

	doc, err = p.GetDoc("/content/pages/ja.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "ja", doc.DefaultLocale())
}

func TestLocalesChain(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$localization:\n  locales: [en, de]\n",
		"/content/pages/inherit.yaml":    "title: Inherit\n",
		"/content/pages/own.yaml":        "$locales: [en, fr]\n",
		"/content/pages/none.yaml":       "$localization:\n  locales: null\n",
	})
	tests := []struct {
		file    string
		locales []string
	}{
		{"/content/pages/inherit.yaml", []string{"en", "de"}},
		{"/content/pages/own.yaml", []string{"en", "fr"}},
		{"/content/pages/none.yaml", nil},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			doc, err := p.GetDoc(tt.file, "")
			require.NoError(t, err)
			assert.Equal(t, tt.locales, doc.Locales())
		})
	}
}

func TestDuplicatePaths(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/a.yaml":          "$slug: same\n$path: /{slug}/\n",
		"/content/pages/b.yaml":          "$slug: same\n$path: /{slug}/\n",
	})

	err := p.LoadRoutes(context.Background())
	require.Error(t, err)
	var dup *errors.DuplicatePathsError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "/same/", dup.Path)
	assert.ElementsMatch(t,
		[]string{"/content/pages/a.yaml", "/content/pages/b.yaml"},
		[]string{dup.Existing.PodPath, dup.Incoming.PodPath})
}

func TestLoadRoutes(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$localization:\n  path: /{locale}/{base}/\n",
		"/content/pages/intro.md":        "---\ntitle: Intro\n---\nHello\n",
		"/content/pages/draft.md":        "---\n$draft: true\n---\n",
		"/content/pages/unrouted.yaml":   "$path: ''\n",
		"/content/pages/_partial.yaml":   "title: Partial\n",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	paths := p.Router().DocPaths("/content/pages/intro.md")
	assert.Equal(t, map[string]string{"en": "/intro/", "de": "/de/intro/", "fr": "/fr/intro/"}, paths)
	assert.Empty(t, p.Router().DocPaths("/content/pages/draft.md"))
	assert.Empty(t, p.Router().DocPaths("/content/pages/unrouted.yaml"))

	c, err := p.Match(ctx, "/de/intro")
	require.NoError(t, err)
	assert.Equal(t, "de", c.Locale())
	assert.Equal(t, router.KindDoc, c.Kind())

	_, err = p.Match(ctx, "/missing/")
	var nf *errors.DocumentNotFoundError
	assert.True(t, errors.As(err, &nf))

	concrete, _ := p.Cache().Routes.Paths("dev")
	assert.Contains(t, concrete, "/intro/")
	assert.Contains(t, concrete, "/fr/intro/")
}

func TestServingPathFormats(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                 "root: /site\n",
		"/content/posts/_blueprint.yaml": "$path: '{root}/{collection}/{date|%Y}/{parent}/{slug}/'\n",
		"/content/posts/2024/hello.yaml": "$title: Hello World\n$date: 2024-03-05\n",
	})
	doc, err := p.GetDoc("/content/posts/2024/hello.yaml", "")
	require.NoError(t, err)
	path, err := doc.ServingPath()
	require.NoError(t, err)
	assert.Equal(t, "/site/posts/2024/2024/hello-world/", path)
}

func TestOrderingAndListing(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/a.yaml":          "title: A\n",
		"/content/pages/b.yaml":          "$order: 2\n",
		"/content/pages/c.yaml":          "$order: 1\n",
		"/content/pages/d.yaml":          "$hidden: true\n",
		"/content/pages/sub/_blueprint.yaml": "$path: /sub/{base}/\n",
		"/content/pages/sub/e.yaml":      "title: E\n",
	})
	c, err := p.GetCollection("pages")
	require.NoError(t, err)

	docs, err := c.ListDocs("")
	require.NoError(t, err)
	var got []string
	for _, doc := range docs {
		got = append(got, doc.Base())
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, got)

	servable, err := c.ListServableDocuments("")
	require.NoError(t, err)
	assert.Len(t, servable, 3)

	collections, err := p.ListCollections()
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "pages/sub", collections[1].Name())
}

func TestYAMLTags(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/other.yaml":      "title: Other\n",
		"/content/strings/common.yaml":   "nav:\n  home: Home\n",
		"/data/nav.yaml":                 "items:\n  - one\n  - two\n",
		"/data/people.csv":               "name,role\nAda,engineer\n",
		"/content/pages/tags.yaml": strings.Join([]string{
			"other: !g.doc /content/pages/other.yaml",
			"home: !g.string common.nav.home",
			"items: !g.yaml /data/nav.yaml?items",
			"people: !g.csv /data/people.csv",
		}, "\n"),
	})

	doc, err := p.GetDoc("/content/pages/tags.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, DocRef{PodPath: "/content/pages/other.yaml"}, doc.Get("other"))
	assert.Equal(t, "Home", doc.Get("home"))
	assert.Equal(t, []any{"one", "two"}, doc.Get("items"))
	assert.Equal(t, []any{map[string]any{"name": "Ada", "role": "engineer"}}, doc.Get("people"))

	assert.Contains(t, p.Cache().Deps.Dependents("/data/nav.yaml"), "/content/pages/tags.yaml")
	assert.Contains(t, p.Cache().Deps.Dependents("/content/strings/common.yaml"), "/content/pages/tags.yaml")

	p2 := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/bad.yaml":        "x: !g.unknown value\n",
	})
	_, err = p2.GetDoc("/content/pages/bad.yaml", "")
	assert.Error(t, err)
}

func TestDataFileChangeReloadsDependents(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/nav.yaml": strings.Join([]string{
			"$path: !g.yaml /data/site.yaml?nav_path",
			"items: !g.yaml /data/site.yaml?items",
		}, "\n"),
		"/data/site.yaml": "nav_path: /nav/\nitems:\n  - one\n",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	doc, err := p.GetDoc("/content/pages/nav.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, []any{"one"}, doc.Get("items"))
	_, err = p.Match(ctx, "/nav/")
	require.NoError(t, err)

	writeFile(t, p, "/data/site.yaml", "nav_path: /menu/\nitems:\n  - one\n  - two\n")
	fc, err := p.HandleFileChange(ctx, "/data/site.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"/content/pages/nav.yaml"}, fc.Reloaded)
	assert.True(t, fc.RoutesChanged)

	doc, err = p.GetDoc("/content/pages/nav.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two"}, doc.Get("items"))
	_, err = p.Match(ctx, "/menu/")
	assert.NoError(t, err)
	_, err = p.Match(ctx, "/nav/")
	assert.Error(t, err)
}

func TestCollectionDependency(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$view: list.html\n",
		"/content/pages/index.yaml":      "title: Index\n",
		"/content/posts/_blueprint.yaml": "$path: /posts/{base}/\n",
		"/content/posts/a.yaml":          "title: First\n$order: 1\n",
		"/content/posts/b.yaml":          "title: Second\n$order: 2\n",
		"/views/list.html":               `<ul>{{ range docs "posts" }}<li>{{ .Title }}</li>{{ end }}</ul>`,
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	out := renderPath(t, p, "/index/")
	assert.Equal(t, "<ul><li>First</li><li>Second</li></ul>", out)

	deps := p.Cache().Deps.Dependents("/content/posts/b.yaml")
	assert.Contains(t, deps, "/content/pages/index.yaml")
	assert.Contains(t, p.Cache().Deps.Dependents("/views/list.html"), "/content/pages/index.yaml")

	// A document added to the collection later reaches the same page.
	writeFile(t, p, "/content/posts/c.yaml", "title: Third\n$order: 3\n")
	fc, err := p.HandleFileChange(ctx, "/content/posts/c.yaml")
	require.NoError(t, err)
	assert.Contains(t, fc.Dependents, "/content/pages/index.yaml")
	assert.True(t, fc.RoutesChanged)

	out = renderPath(t, p, "/index/")
	assert.Equal(t, "<ul><li>First</li><li>Second</li><li>Third</li></ul>", out)
}

func TestInterleavedMutations(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$view: list.html\n",
		"/content/pages/index.yaml":      "title: Index\n",
		"/content/posts/_blueprint.yaml": "$path: /posts/{base}/\n",
		"/content/posts/a.yaml":          "title: First\n$order: 1\n",
		"/content/posts/b.yaml":          "title: Second\n$order: 2\n",
		"/views/list.html":               `<ul>{{ range docs "posts" }}<li>{{ .Title }}</li>{{ end }}</ul>`,
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))
	assert.Equal(t, "<ul><li>First</li><li>Second</li></ul>", renderPath(t, p, "/index/"))

	// Several writes land before any change is handled; handling them in a
	// different order still converges on the files on disk.
	writeFile(t, p, "/content/posts/a.yaml", "title: First v2\n$order: 1\n")
	writeFile(t, p, "/content/posts/c.yaml", "title: Third\n$order: 3\n")
	require.NoError(t, p.Store().Remove("/content/posts/b.yaml"))
	for _, changed := range []string{"/content/posts/c.yaml", "/content/posts/b.yaml", "/content/posts/a.yaml"} {
		fc, err := p.HandleFileChange(ctx, changed)
		require.NoError(t, err)
		assert.Contains(t, fc.Dependents, "/content/pages/index.yaml", changed)
	}
	assert.Equal(t, "<ul><li>First v2</li><li>Third</li></ul>", renderPath(t, p, "/index/"))

	_, err := p.Match(ctx, "/posts/b/")
	assert.Error(t, err)
	_, err = p.Match(ctx, "/posts/c/")
	assert.NoError(t, err)

	writeFile(t, p, "/content/posts/a.yaml", "title: First v2\n$order: 5\n")
	_, err = p.HandleFileChange(ctx, "/content/posts/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "<ul><li>Third</li><li>First v2</li></ul>", renderPath(t, p, "/index/"))
}

func TestFileChangeReconcilesRoutes(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/intro.yaml":      "title: Intro\n",
		"/content/pages/other.yaml":      "title: Other\n",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	writeFile(t, p, "/content/pages/intro.yaml", "title: Intro\n$path: /moved/\n")
	fc, err := p.HandleFileChange(ctx, "/content/pages/intro.yaml")
	require.NoError(t, err)
	assert.True(t, fc.RoutesChanged)
	_, err = p.Match(ctx, "/moved/")
	assert.NoError(t, err)
	_, err = p.Match(ctx, "/intro/")
	assert.Error(t, err)

	fc, err = p.HandleFileChange(ctx, "/content/pages/other.yaml")
	require.NoError(t, err)
	assert.False(t, fc.RoutesChanged)

	require.NoError(t, p.Store().Remove("/content/pages/other.yaml"))
	fc, err = p.HandleFileChange(ctx, "/content/pages/other.yaml")
	require.NoError(t, err)
	assert.True(t, fc.RoutesChanged)
	_, err = p.Match(ctx, "/other/")
	assert.Error(t, err)

	writeFile(t, p, "/content/pages/_blueprint.yaml", "$path: /pages/{base}/\n")
	fc, err = p.HandleFileChange(ctx, "/content/pages/_blueprint.yaml")
	require.NoError(t, err)
	// An explicit $path is unaffected by the blueprint format.
	assert.False(t, fc.RoutesChanged)
	assert.Equal(t, map[string]string{"": "/moved/"}, p.Router().DocPaths("/content/pages/intro.yaml"))

	writeFile(t, p, "/content/pages/intro.yaml", "title: Intro\n")
	_, err = p.HandleFileChange(ctx, "/content/pages/intro.yaml")
	require.NoError(t, err)
	_, err = p.Match(ctx, "/pages/intro/")
	assert.NoError(t, err)
}

func TestRenderDocument(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  localizedPodspec,
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$view: page.html\n$localization:\n  path: /{locale}/{base}/\n",
		"/content/pages/intro.md":        "---\n$title: Intro\n---\n*Hello*\n",
		"/views/page.html":               `<h1>{{ .Doc.Title }}</h1>{{ .Body }}<p>{{ _ "Welcome" }}</p>`,
		"/translations/de/LC_MESSAGES/messages.po": "msgid \"Welcome\"\nmsgstr \"Willkommen\"\n",
	})
	require.NoError(t, p.LoadRoutes(context.Background()))

	assert.Equal(t, "<h1>Intro</h1><p><em>Hello</em></p>\n<p>Welcome</p>", renderPath(t, p, "/intro/"))
	assert.Equal(t, "<h1>Intro</h1><p><em>Hello</em></p>\n<p>Willkommen</p>", renderPath(t, p, "/de/intro/"))
}

func TestRenderHookFailureKeepsLastResult(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/intro.html":      "---\ntitle: Intro\n---\nbody",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	stamp := func(mark string) hooks.Func {
		return func(_ context.Context, previous any, _ ...any) (any, error) {
			return previous.(string) + mark, nil
		}
	}
	broken := hooks.Func(func(context.Context, any, ...any) (any, error) {
		return nil, errors.New("broken hook")
	})
	require.NoError(t, p.Hooks().Register(hooks.NewExtension("stamp", map[hooks.Key]hooks.Hook{
		hooks.PreRender:  stamp("[pre]"),
		hooks.PostRender: stamp("<!--stamped-->"),
	})))
	require.NoError(t, p.Hooks().Register(hooks.NewExtension("broken", map[hooks.Key]hooks.Hook{
		hooks.PreRender:  broken,
		hooks.PostRender: broken,
	})))

	assert.Equal(t, "body[pre]<!--stamped-->", renderPath(t, p, "/intro/"))
}

func TestWriteCacheFailureIsRecoverable(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/podspec.yaml", []byte("{}"), 0o644))
	p, err := New(podfs.New(afero.NewReadOnlyFs(mem)), Options{Env: "dev"})
	require.NoError(t, err)

	p.cache.Objects.Get("general").Add("k", "v")
	err = p.WriteCache(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err))
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))

	var ge *errors.GrowError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, errors.ErrCodeCacheWrite, ge.Code)
	assert.True(t, p.cache.IsDirty())
}

func TestStaticRoutes(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml": strings.Join([]string{
			"static_dirs:",
			"- static_dir: /source/static/",
			"  serve_at: /app/static/",
			"  fingerprinted: true",
		}, "\n"),
		"/source/static/main.css": "body{}",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))

	st, err := p.GetStatic(ctx, "/source/static/main.css", "")
	require.NoError(t, err)
	hash := router.Hash([]byte("body{}"))
	assert.Equal(t, "/app/static/main-"+hash+".css", st.URL())
	assert.Equal(t, "text/css; charset=utf-8", st.ContentType())

	out := renderPath(t, p, "/app/static/main-"+hash+".css")
	assert.Equal(t, "body{}", out)

	writeFile(t, p, "/source/static/late.js", "x()")
	out = renderPath(t, p, "/app/static/late-"+router.Hash([]byte("x()"))+".js")
	assert.Equal(t, "x()", out)

	cached, ok := p.Cache().Objects.Get(fingerprintsCache).Get("/source/static/main.css")
	require.True(t, ok)
	assert.Equal(t, hash, cached)
}

func TestSitemap(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  "sitemap:\n  enabled: true\n  base_url: https://example.com/\n",
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n",
		"/content/pages/intro.yaml":      "title: Intro\n",
		"/content/pages/about.yaml":      "title: About\n",
	})
	require.NoError(t, p.LoadRoutes(context.Background()))

	out := renderPath(t, p, "/sitemap.xml")
	assert.Contains(t, out, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	about := strings.Index(out, "<loc>https://example.com/about/</loc>")
	intro := strings.Index(out, "<loc>https://example.com/intro/</loc>")
	assert.True(t, about > 0 && intro > about)
}

func TestExtract(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/content/pages/_blueprint.yaml": "$path: /{base}/\n$title@: Pages\n",
		"/content/pages/intro.yaml":      "title@: Hello\ntitle@#: Page heading\n",
		"/views/page.html":               `{{ _ "Welcome" }}`,
	})
	ctx := context.Background()
	template, err := p.Extract(ctx, true)
	require.NoError(t, err)

	for _, id := range []string{"Pages", "Hello", "Welcome"} {
		_, ok := template.Get(id)
		assert.True(t, ok, id)
	}
	assert.True(t, p.Store().Exists("/translations/messages.pot"))

	stats, err := p.UpdateCatalogs(ctx, []string{"de"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats["de"].Added)
	assert.True(t, p.Store().Exists("/translations/de/LC_MESSAGES/messages.po"))
}

func TestPodspecReload(t *testing.T) {
	p := newTestPod(t, map[string]string{
		"/podspec.yaml":                  "root: /a\n",
		"/content/pages/_blueprint.yaml": "$path: '{root}/{base}/'\n",
		"/content/pages/intro.yaml":      "title: Intro\n",
	})
	ctx := context.Background()
	require.NoError(t, p.LoadRoutes(ctx))
	_, err := p.Match(ctx, "/a/intro/")
	require.NoError(t, err)

	writeFile(t, p, "/podspec.yaml", "root: /b\n")
	fc, err := p.HandleFileChange(ctx, "/podspec.yaml")
	require.NoError(t, err)
	assert.True(t, fc.RoutesChanged)
	_, err = p.Match(ctx, "/b/intro/")
	assert.NoError(t, err)
}
