// Package pathformat expands "{placeholder}" path formats into serving paths
// and router patterns.
package pathformat

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/conneroisu/grow/internal/errors"
)

// DefaultDateLayout is used for a bare "{date}" placeholder.
const DefaultDateLayout = "2006-01-02"

var (
	datePattern        = regexp.MustCompile(`\{(date|dates\.([A-Za-z0-9_\-]+))\|([^{}]+)\}`)
	placeholderPattern = regexp.MustCompile(`\{[^{}]+\}`)
	localeInnerPattern = regexp.MustCompile(`/\{locale(\|lower)?\}/`)
	localeTailPattern  = regexp.MustCompile(`/\{locale(\|lower)?\}$`)
	slashesPattern     = regexp.MustCompile(`/{2,}`)
)

// Context provides the values a path format may reference. Placeholders whose
// key is absent are left intact by the safe forms.
type Context struct {
	// Root is the podspec root prefix.
	Root string
	// Fingerprint is substituted for "{env.fingerprint}".
	Fingerprint string
	// Values holds document placeholders: base, slug, category, collection,
	// parent and any extra keys.
	Values map[string]string
	// Locale is the URL form of the locale, already aliased.
	Locale string
	// Date backs "{date}" and "{date|FMT}".
	Date time.Time
	// Dates backs "{dates.NAME|FMT}".
	Dates map[string]time.Time
}

// Format expands format and fails with a PathFormatError if any placeholder
// remains unresolved.
func Format(format string, ctx Context) (string, error) {
	out := expand(format, ctx, false)
	if missing := Unresolved(out); len(missing) > 0 {
		return out, &errors.PathFormatError{Format: format, Placeholders: missing}
	}
	return out, nil
}

// FormatSafe expands format, leaving unknown placeholders intact.
func FormatSafe(format string, ctx Context) string {
	return expand(format, ctx, false)
}

// Parameterize expands format but rewrites the locale placeholder as a
// ":locale" route parameter, yielding a pattern usable for every locale.
func Parameterize(format string, ctx Context) string {
	return expand(format, ctx, true)
}

// Unresolved returns the placeholders left in s, in order of appearance.
func Unresolved(s string) []string {
	return placeholderPattern.FindAllString(s, -1)
}

// Placeholders returns the sorted, de-duplicated placeholder names referenced
// by format, modifiers stripped.
func Placeholders(format string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllString(format, -1) {
		name := strings.Trim(m, "{}")
		if i := strings.Index(name, "|"); i >= 0 {
			name = name[:i]
		}
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func expand(format string, ctx Context, parameterize bool) string {
	out := format

	// Pod-level values.
	pod := map[string]string{
		"root":            strings.Trim(ctx.Root, "/"),
		"env.fingerprint": ctx.Fingerprint,
	}
	out = substitute(out, pod)
	out = expandDates(out, ctx)

	// Document values, with lowercase duplicates for "|lower".
	values := make(map[string]string, len(ctx.Values)*2)
	for k, v := range ctx.Values {
		values[k] = v
		values[k+"|lower"] = strings.ToLower(v)
	}
	out = substitute(out, values)

	if parameterize {
		out = localeInnerPattern.ReplaceAllString(out, "/:locale/")
		out = localeTailPattern.ReplaceAllString(out, "/:locale")
	} else if ctx.Locale != "" {
		out = substitute(out, map[string]string{
			"locale":       ctx.Locale,
			"locale|lower": strings.ToLower(ctx.Locale),
		})
	}

	return slashesPattern.ReplaceAllString(out, "/")
}

func expandDates(s string, ctx Context) string {
	// Substituted values never reintroduce a date placeholder, so one pass
	// over every match is a fixed point.
	s = datePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := datePattern.FindStringSubmatch(m)
		t, ok := resolveDate(ctx, sub[1], sub[2])
		if !ok {
			return m
		}
		return strftime.Format(sub[3], t)
	})
	if !ctx.Date.IsZero() {
		s = strings.ReplaceAll(s, "{date}", ctx.Date.Format(DefaultDateLayout))
	}
	return s
}

func resolveDate(ctx Context, key, name string) (time.Time, bool) {
	if key == "date" {
		return ctx.Date, !ctx.Date.IsZero()
	}
	t, ok := ctx.Dates[name]
	return t, ok && !t.IsZero()
}

func substitute(s string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(s, "{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}
