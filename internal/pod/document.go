package pod

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/pathformat"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/router"
	"github.com/conneroisu/grow/internal/untag"
)

// Format is the kind of a document file.
type Format string

const (
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

var documentFormats = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".md":   FormatMarkdown,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".txt":  FormatText,
}

// FormatOf returns the format of podPath by extension.
func FormatOf(podPath string) Format {
	if f, ok := documentFormats[strings.ToLower(podpath.Ext(podPath))]; ok {
		return f
	}
	return FormatText
}

// IsDocumentFile reports whether podPath has a document extension.
func IsDocumentFile(podPath string) bool {
	_, ok := documentFormats[strings.ToLower(podpath.Ext(podPath))]
	return ok
}

// Document is a content file in one locale. Construction is cheap; load
// reads and resolves the file and runs once.
type Document struct {
	pod        *Pod
	podPath    string
	collection *Collection
	format     Format

	mu            sync.Mutex
	loaded        bool
	locale        string
	defaultLocale string
	locales       []string
	loc           localization
	fields        map[string]any
	body          string
	hasBody       bool
}

func newDocument(p *Pod, root, locale string, c *Collection) *Document {
	return &Document{
		pod:        p,
		podPath:    root,
		collection: c,
		format:     FormatOf(root),
		locale:     locale,
	}
}

func (d *Document) params(spec *Podspec) untag.Params {
	return untag.Params{
		"env": untag.RegexResolver{Value: d.pod.env},
		"locale": untag.NewLocaleGroupResolver(
			d.loc.groupSource(), d.collection.loc.groupSource(), spec.loc.groupSource()),
	}
}

func (d *Document) load() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	spec, err := d.pod.Podspec()
	if err != nil {
		return err
	}
	fm, err := d.pod.frontMatter(d.podPath)
	if err != nil {
		return err
	}

	// Localization config comes from the base fields, untagged with no
	// locale, so it cannot depend on the locale it selects.
	base := untag.Untag(fm.Base(), "", untag.Params{"env": untag.RegexResolver{Value: d.pod.env}})
	d.loc = readLocalization(base, "$")
	d.defaultLocale = d.resolveDefaultLocale(spec)
	d.locales = d.resolveLocales()
	if d.locale == "" {
		d.locale = d.defaultLocale
	}

	raw := fm.Localized(d.locale)
	body, hasBody := fm.Body, fm.HasBody
	if d.locale != "" {
		variant := podpath.LocalizedPath(d.podPath, d.locale)
		if d.pod.store.Exists(variant) {
			vfm, err := d.pod.frontMatter(variant)
			if err != nil {
				return err
			}
			deepMerge(raw, vfm.Localized(d.locale))
			if vfm.HasBody {
				body, hasBody = vfm.Body, true
			}
			d.pod.cache.Deps.Add(d.podPath, variant)
		}
	}
	d.pod.cache.Deps.Add(d.podPath, d.collection.BlueprintPath())

	fields := untag.Untag(raw, d.locale, d.params(spec))
	if fields == nil {
		fields = map[string]any{}
	}
	d.fields = fields
	d.body, d.hasBody = body, hasBody
	d.loaded = true
	return nil
}

// resolveDefaultLocale walks document, collection, pod.
func (d *Document) resolveDefaultLocale(spec *Podspec) string {
	if d.loc.defaultLocale != "" {
		return d.loc.defaultLocale
	}
	if d.collection.loc.defaultLocale != "" {
		return d.collection.loc.defaultLocale
	}
	return spec.loc.defaultLocale
}

// resolveLocales walks document, collection, pod. An explicit null at any
// level yields no locales.
func (d *Document) resolveLocales() []string {
	if d.loc.localesDefined {
		return append([]string(nil), d.loc.locales...)
	}
	return d.collection.Locales()
}

// PodPath returns the root pod path, without any locale suffix.
func (d *Document) PodPath() string { return d.podPath }

// Collection returns the owning collection.
func (d *Document) Collection() *Collection { return d.collection }

// Format returns the document format.
func (d *Document) Format() Format { return d.format }

// Locale returns the resolved locale.
func (d *Document) Locale() string { return d.locale }

// DefaultLocale returns the resolved default locale.
func (d *Document) DefaultLocale() string { return d.defaultLocale }

// Locales returns the locales the document is available in.
func (d *Document) Locales() []string { return append([]string(nil), d.locales...) }

// IsDefaultLocale reports whether the document is in its default locale.
func (d *Document) IsDefaultLocale() bool { return d.locale == d.defaultLocale }

// Fields returns the untagged fields without built-in "$" keys.
func (d *Document) Fields() map[string]any {
	out := make(map[string]any, len(d.fields))
	for k, v := range d.fields {
		if !strings.HasPrefix(k, "$") {
			out[k] = v
		}
	}
	return out
}

// Get returns an untagged field, including built-in "$" keys.
func (d *Document) Get(key string) any { return d.fields[key] }

// Body returns the document body.
func (d *Document) Body() string { return d.body }

// HasBody reports whether the document has a non-empty body.
func (d *Document) HasBody() bool { return d.hasBody }

// Title returns $title, falling back to title.
func (d *Document) Title() string {
	if t := cast.ToString(d.fields["$title"]); t != "" {
		return t
	}
	return cast.ToString(d.fields["title"])
}

// Base returns the file name without extension or locale.
func (d *Document) Base() string { return podpath.BaseName(d.podPath) }

// Slug returns $slug, the slugified title, or the base name.
func (d *Document) Slug() string {
	if s := cast.ToString(d.fields["$slug"]); s != "" {
		return s
	}
	if s := Slugify(d.Title()); s != "" {
		return s
	}
	return d.Base()
}

// Category returns $category.
func (d *Document) Category() string { return cast.ToString(d.fields["$category"]) }

// Date returns $date, or the zero time.
func (d *Document) Date() time.Time {
	t, err := cast.ToTimeE(d.fields["$date"])
	if err != nil {
		return time.Time{}
	}
	return t
}

// Dates returns the named dates of $dates.
func (d *Document) Dates() map[string]time.Time {
	out := make(map[string]time.Time)
	for name, v := range cast.ToStringMap(d.fields["$dates"]) {
		if t, err := cast.ToTimeE(v); err == nil {
			out[name] = t
		}
	}
	return out
}

// Order returns $order and whether it is set.
func (d *Document) Order() (int, bool) {
	v, ok := d.fields["$order"]
	if !ok || v == nil {
		return 0, false
	}
	n, err := cast.ToIntE(v)
	return n, err == nil
}

// Hidden reports whether the document is omitted from listings.
func (d *Document) Hidden() bool { return cast.ToBool(d.fields["$hidden"]) }

// Draft reports whether the document or its collection is a draft.
func (d *Document) Draft() bool {
	return cast.ToBool(d.fields["$draft"]) || d.collection.Draft()
}

// View returns the view template: $view, then the routes override, then the
// collection view.
func (d *Document) View() string {
	if v := cast.ToString(d.fields["$view"]); v != "" {
		return v
	}
	if o, ok := d.collection.RouteOverride(d.podPath); ok && o.View != "" {
		return o.View
	}
	return d.collection.View()
}

// PathFormat selects the path format for the document's locale. The base
// format comes from $path, the routes override, then the collection. A
// non-default locale prefers a localized format: the document's
// $localization.path, the override's, the collection's, then a base format
// that itself contains {locale}.
func (d *Document) PathFormat() string {
	override, hasOverride := d.collection.RouteOverride(d.podPath)

	var base string
	switch {
	case d.fields["$path"] != nil:
		base = cast.ToString(d.fields["$path"])
	case hasOverride && override.Path != "":
		base = override.Path
	default:
		base = d.collection.PathFormat()
	}
	if base == "" || d.locale == "" || d.locale == d.defaultLocale {
		return base
	}

	candidates := []string{d.loc.path}
	if hasOverride {
		candidates = append(candidates, cast.ToString(override.Localization["path"]))
	}
	candidates = append(candidates, d.collection.LocalizedPathFormat())
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	if strings.Contains(d.collection.PathFormat(), "{locale") {
		return d.collection.PathFormat()
	}
	return base
}

func (d *Document) pathContext(spec *Podspec) pathformat.Context {
	parent := podpath.Rel(d.collection.path, podpath.Dir(d.podPath))
	return pathformat.Context{
		Root:        spec.Root,
		Fingerprint: d.pod.fingerprint,
		Values: map[string]string{
			"base":       d.Base(),
			"slug":       d.Slug(),
			"category":   d.Category(),
			"collection": d.collection.Name(),
			"parent":     parent,
		},
		Locale: spec.Alias(d.locale),
		Date:   d.Date(),
		Dates:  d.Dates(),
	}
}

// ServingPath returns the concrete URL path, or "" for an unrouted document.
func (d *Document) ServingPath() (string, error) {
	format := d.PathFormat()
	if format == "" {
		return "", nil
	}
	spec, err := d.pod.Podspec()
	if err != nil {
		return "", err
	}
	out, err := pathformat.Format(format, d.pathContext(spec))
	if err != nil {
		var pfe *errors.PathFormatError
		if errors.As(err, &pfe) {
			pfe.PodPath = d.podPath
		}
		return "", err
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out, nil
}

// URL returns the serving path, or "" when it cannot be resolved.
func (d *Document) URL() string {
	p, err := d.ServingPath()
	if err != nil {
		return ""
	}
	return p
}

// Localize returns the document in locale.
func (d *Document) Localize(locale string) (*Document, error) {
	return d.pod.GetDoc(d.podPath, locale)
}

// LocalizedPaths returns the serving path in the default locale followed by
// one path per other locale. Locales served at the default path are folded
// into the default entry.
func (d *Document) LocalizedPaths() ([]router.LocalizedPath, error) {
	def, err := d.pod.GetDoc(d.podPath, d.defaultLocale)
	if err != nil {
		return nil, err
	}
	defaultPath, err := def.ServingPath()
	if err != nil || defaultPath == "" {
		return nil, err
	}
	out := []router.LocalizedPath{{Locale: def.locale, Path: defaultPath, Default: true}}

	locales := append([]string(nil), d.locales...)
	sort.Strings(locales)
	for _, locale := range locales {
		if locale == def.locale {
			continue
		}
		localized, err := d.pod.GetDoc(d.podPath, locale)
		if err != nil {
			return nil, err
		}
		p, err := localized.ServingPath()
		if err != nil {
			return nil, err
		}
		if p == "" || p == defaultPath {
			continue
		}
		out = append(out, router.LocalizedPath{Locale: locale, Path: p})
	}
	return out, nil
}

func (d *Document) String() string {
	if d.locale == "" {
		return d.podPath
	}
	return fmt.Sprintf("%s@%s", d.podPath, d.locale)
}

// Slugify lowercases s, strips accents and joins words with hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
