package untag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUntagByLocale(t *testing.T) {
	fields := map[string]any{
		"foo":       "base",
		"foo@de":    "bar-de",
		"foo@fr|it": "bar-any",
	}

	tests := []struct {
		locale   string
		expected map[string]any
	}{
		{"fr", map[string]any{"foo": "bar-any"}},
		{"it", map[string]any{"foo": "bar-any"}},
		{"de", map[string]any{"foo": "bar-de"}},
		{"DE", map[string]any{"foo": "bar-de"}},
		{"en", map[string]any{"foo": "base"}},
		{"", map[string]any{"foo": "base"}},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.expected, Untag(fields, tt.locale, nil))
		})
	}
}

func TestUntagDropsComments(t *testing.T) {
	fields := map[string]any{
		"title@":  "Hello",
		"title@#": "Greeting shown on the home page",
	}
	assert.Equal(t, map[string]any{"title": "Hello"}, Untag(fields, "en", nil))
}

func TestUntagNested(t *testing.T) {
	fields := map[string]any{
		"nested": map[string]any{
			"key":    "base",
			"key@ja": "ja-value",
		},
		"list": []any{
			map[string]any{"item": "a", "item@ja": "a-ja"},
			"plain",
		},
	}

	got := Untag(fields, "ja", nil)
	assert.Equal(t, map[string]any{"key": "ja-value"}, got["nested"])
	assert.Equal(t, []any{map[string]any{"item": "a-ja"}, "plain"}, got["list"])

	// Input must not be modified.
	assert.Contains(t, fields["nested"], "key@ja")
}

func TestUntagParams(t *testing.T) {
	fields := map[string]any{
		"host":              "localhost",
		"host@env.prod":     "example.com",
		"host@env.staging":  "staging.example.com",
		"banner":            "default",
		"banner@locale.eu":  "eu",
		"banner@de":         "de-only",
		"unknown@weird.val": "dropped",
	}
	params := Params{
		"env": RegexResolver{Value: "prod"},
		"locale": NewLocaleGroupResolver(MapGroups(map[string]any{
			"eu": []any{"de", "fr"},
		})),
	}

	got := Untag(fields, "de", params)
	assert.Equal(t, "example.com", got["host"])
	assert.Equal(t, "eu", got["banner"], "parameter overrides win over locale overrides")
	assert.NotContains(t, got, "unknown")

	got = Untag(fields, "en", params)
	assert.Equal(t, "default", got["banner"])
}

func TestUntagDottedLocalePatterns(t *testing.T) {
	fields := map[string]any{
		"foo":            "base",
		"foo@de.*":       "german",
		"greeting":       "hello",
		"greeting@en_.*": "hi",
		"host":           "localhost",
		"host@env.prod":  "example.com",
	}
	params := Params{"locale": NewLocaleGroupResolver()}

	tests := []struct {
		locale   string
		foo      string
		greeting string
	}{
		{"de_AT", "german", "hello"},
		{"de", "german", "hello"},
		{"en_GB", "base", "hi"},
		{"fr", "base", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			got := Untag(fields, tt.locale, params)
			assert.Equal(t, tt.foo, got["foo"])
			assert.Equal(t, tt.greeting, got["greeting"])
			// No env resolver: the env override matches no locale.
			assert.Equal(t, "localhost", got["host"])
		})
	}
}

func TestUntagRetagsMarkedLists(t *testing.T) {
	fields := map[string]any{
		"tags@":   []any{"a", "b"},
		"tags@fr": []any{"a-fr"},
	}

	got := Untag(fields, "fr", nil)
	assert.Equal(t, []any{"a-fr"}, got["tags"])
	assert.Equal(t, []any{"a-fr"}, got["tags@"])

	got = Untag(fields, "en", nil)
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	assert.Equal(t, []any{"a", "b"}, got["tags@"])
}

func TestUntagIdempotent(t *testing.T) {
	fields := map[string]any{
		"foo":      "base",
		"foo@de":   "de",
		"tags@":    []any{"x"},
		"nested":   map[string]any{"a@de": 1, "a": 0},
		"remark@#": "comment",
	}

	for _, locale := range []string{"de", "en", ""} {
		once := Untag(fields, locale, nil)
		twice := Untag(once, locale, nil)
		assert.Equal(t, once, twice, "locale %q", locale)
	}
}

func TestLocaleGroupRegex(t *testing.T) {
	resolver := NewLocaleGroupResolver(
		MapGroups(nil),
		MapGroups(map[string]any{"latam": "es_.*"}),
	)
	assert.True(t, resolver.Matches("latam", "es_MX"))
	assert.False(t, resolver.Matches("latam", "es"))
	assert.False(t, resolver.Matches("missing", "es_MX"))
}
