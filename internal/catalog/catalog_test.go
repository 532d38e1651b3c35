package catalog

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podfs"
)

const samplePO = `msgid ""
msgstr ""
"Language: de\n"
"Content-Type: text/plain; charset=UTF-8\n"

#. Page title
#: /views/base.html:12
msgid "Hello"
msgstr "Hallo"

#, fuzzy
msgid "Goodbye"
msgstr "Tschuess"

msgid "Empty"
msgstr ""

msgid ""
"Multi\n"
"line"
msgstr "Mehr\nzeilig"

#~ msgid "Old"
#~ msgstr "Alt"
`

func TestParse(t *testing.T) {
	cat, err := Parse(strings.NewReader(samplePO), "/translations/de/LC_MESSAGES/messages.po", "de")
	require.NoError(t, err)

	assert.Equal(t, "de", cat.Header["Language"])
	assert.Equal(t, 4, cat.Len())

	hello, ok := cat.Get("Hello")
	require.True(t, ok)
	assert.Equal(t, []string{"Page title"}, hello.Comments)
	assert.Equal(t, []string{"/views/base.html:12"}, hello.Locations)

	goodbye, _ := cat.Get("Goodbye")
	assert.True(t, goodbye.Fuzzy())

	old, ok := cat.Get("Old")
	require.True(t, ok)
	assert.True(t, old.Obsolete)
	assert.Equal(t, "Alt", old.Str)

	multi, ok := cat.Get("Multi\nline")
	require.True(t, ok)
	assert.Equal(t, "Mehr\nzeilig", multi.Str)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse(strings.NewReader("msgid \"unterminated\n"), "/x.po", "de")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/x.po:1")
}

func TestGettext(t *testing.T) {
	cat, err := Parse(strings.NewReader(samplePO), "", "de")
	require.NoError(t, err)

	tests := []struct {
		id   string
		want string
	}{
		{"Hello", "Hallo"},
		{"Goodbye", "Goodbye"},
		{"Empty", "Empty"},
		{"Old", "Old"},
		{"Missing", "Missing"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.Gettext(tt.id))
		})
	}

	var nilCatalog *Catalog
	assert.Equal(t, "x", nilCatalog.Gettext("x"))
}

func TestWriteRoundTrip(t *testing.T) {
	cat, err := Parse(strings.NewReader(samplePO), "", "de")
	require.NoError(t, err)
	cat.Header["X-Pod"] = "example"

	var buf bytes.Buffer
	require.NoError(t, cat.Write(&buf))
	out := buf.String()

	assert.Contains(t, out, `msgid "Hello"`)
	assert.Contains(t, out, `msgstr "Hallo"`)
	assert.Contains(t, out, "fuzzy")
	assert.Contains(t, out, `#~ msgid "Old"`)
	assert.Contains(t, out, `#~ msgstr "Alt"`)

	again, err := Parse(strings.NewReader(out), "", "de")
	require.NoError(t, err)
	assert.Equal(t, cat.Len(), again.Len())
	assert.Equal(t, "Hallo", again.Gettext("Hello"))
	assert.Equal(t, "Mehr\nzeilig", again.Gettext("Multi\nline"))
	assert.Equal(t, "de", again.Header["Language"])
	assert.Equal(t, "example", again.Header["X-Pod"])

	hello, ok := again.Get("Hello")
	require.True(t, ok)
	assert.Equal(t, []string{"Page title"}, hello.Comments)
	assert.Equal(t, []string{"/views/base.html:12"}, hello.Locations)

	goodbye, ok := again.Get("Goodbye")
	require.True(t, ok)
	assert.True(t, goodbye.Fuzzy())
	assert.Equal(t, "Goodbye", again.Gettext("Goodbye"))

	obsolete := again.ObsoleteMessages()
	require.Len(t, obsolete, 1)
	assert.Equal(t, "Old", obsolete[0].ID)
	assert.Equal(t, "Alt", obsolete[0].Str)
}

func TestParseObsoleteDoesNotShadowActive(t *testing.T) {
	const po = `msgid "Kept"
msgstr "Neu"

#~ msgid "Kept"
#~ msgstr "Alt"
`
	cat, err := Parse(strings.NewReader(po), "", "de")
	require.NoError(t, err)
	kept, ok := cat.Get("Kept")
	require.True(t, ok)
	assert.False(t, kept.Obsolete)
	assert.Equal(t, "Neu", kept.Str)
	assert.Empty(t, cat.ObsoleteMessages())
}

func TestParseEmpty(t *testing.T) {
	cat, err := Parse(strings.NewReader("\n\n"), "", "de")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}

func TestMerge(t *testing.T) {
	cat := New("de")
	cat.Set("Hello", "Hallo")
	cat.Set("Removed", "Entfernt")

	template := New("")
	template.Add("Hello", "/views/base.html:3", "")
	template.Add("New", "/content/pages/a.yaml", "Button label")

	stats := cat.Merge(template)
	assert.Equal(t, MergeStats{Added: 1, Updated: 1, Obsolete: 1}, stats)

	assert.Equal(t, "Hallo", cat.Gettext("Hello"))
	removed, _ := cat.Get("Removed")
	assert.True(t, removed.Obsolete)
	added, _ := cat.Get("New")
	assert.Equal(t, []string{"Button label"}, added.Comments)
	assert.Len(t, cat.Untranslated(), 1)

	// An id that returns to the template is revived.
	template.Add("Removed", "/views/x.html:1", "")
	stats = cat.Merge(template)
	assert.Equal(t, 0, stats.Obsolete)
	revived, _ := cat.Get("Removed")
	assert.False(t, revived.Obsolete)
	assert.Equal(t, "Entfernt", cat.Gettext("Removed"))
}

func TestExtractData(t *testing.T) {
	e := NewExtractor()
	data := map[string]any{
		"title@":  "Welcome",
		"title@#": "Home page heading",
		"plain":   "not extracted",
		"nested": map[string]any{
			"items@": []any{"One", "Two"},
		},
		"list": []any{
			map[string]any{"label@": "Three"},
		},
	}
	n := e.Data("/content/pages/home.yaml", data)
	assert.Equal(t, 4, n)

	welcome, ok := e.Template.Get("Welcome")
	require.True(t, ok)
	assert.Equal(t, []string{"Home page heading"}, welcome.Comments)
	assert.Equal(t, []string{"/content/pages/home.yaml"}, welcome.Locations)
	_, ok = e.Template.Get("not extracted")
	assert.False(t, ok)
}

func TestExtractView(t *testing.T) {
	e := NewExtractor()
	src := "<h1>{{ _ \"Title\" }}</h1>\n" +
		"{{ if .doc }}{{ gettext \"Inside\" }}{{ end }}\n" +
		"{{ \"Piped\" | _ }}\n" +
		"{{ printf \"%s\" (_ \"Nested\") }}\n" +
		"{{ define \"footer\" }}{{ _ \"Footer\" }}{{ end }}\n" +
		"{{ upper \"Ignored\" }}"

	n, err := e.View("/views/base.html", src)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	title, ok := e.Template.Get("Title")
	require.True(t, ok)
	assert.Equal(t, []string{"/views/base.html:1"}, title.Locations)
	inside, _ := e.Template.Get("Inside")
	assert.Equal(t, []string{"/views/base.html:2"}, inside.Locations)
	for _, id := range []string{"Piped", "Nested", "Footer"} {
		_, ok := e.Template.Get(id)
		assert.True(t, ok, id)
	}
	_, ok = e.Template.Get("Ignored")
	assert.False(t, ok)
}

func TestExtractViewInvalid(t *testing.T) {
	_, err := NewExtractor().View("/views/bad.html", "{{ if }}")
	assert.Error(t, err)
}

func TestCatalogs(t *testing.T) {
	ctx := context.Background()
	fs := podfs.NewMemory()
	require.NoError(t, fs.WriteFile(Path("de"), []byte(samplePO)))

	cats := NewCatalogs(fs, logging.NewNop())
	assert.Equal(t, "Hallo", cats.Gettext(ctx, "de", "Hello"))
	assert.Equal(t, "Hello", cats.Gettext(ctx, "fr", "Hello"))
	assert.Equal(t, "Hello", cats.Gettext(ctx, "", "Hello"))

	locales, err := cats.Locales()
	require.NoError(t, err)
	assert.Equal(t, []string{"de"}, locales)

	_, err = cats.Get(ctx, "not a locale!")
	assert.Error(t, err)
}

func TestCatalogsUpdate(t *testing.T) {
	ctx := context.Background()
	fs := podfs.NewMemory()
	cats := NewCatalogs(fs, logging.NewNop())

	e := NewExtractor()
	e.Template.Add("Hello", "/views/base.html:1", "")
	require.NoError(t, cats.Save(e.Template))
	assert.True(t, fs.Exists(TemplatePath))

	template, err := cats.LoadTemplate()
	require.NoError(t, err)
	assert.Equal(t, 1, template.Len())

	stats, err := cats.Update(ctx, template, []string{"", "fr"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats["fr"].Added)
	assert.True(t, fs.Exists(Path("fr")))

	cats.Reset()
	fr, err := cats.Get(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, "fr", fr.Header["Language"])
	_, ok := fr.Get("Hello")
	assert.True(t, ok)
}

func TestValidateLocale(t *testing.T) {
	assert.NoError(t, ValidateLocale("en"))
	assert.NoError(t, ValidateLocale("de_DE"))
	assert.NoError(t, ValidateLocale(""))
	assert.Error(t, ValidateLocale("###"))
}
