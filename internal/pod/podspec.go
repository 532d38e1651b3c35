package pod

import (
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/conneroisu/grow/internal/catalog"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/router"
	"github.com/conneroisu/grow/internal/untag"
)

// PodspecPath is the pod configuration file.
const PodspecPath = "/podspec.yaml"

// Podspec is the pod's top-level configuration.
type Podspec struct {
	Root         string                `mapstructure:"root"`
	Localization Localization          `mapstructure:"localization"`
	StaticDirs   []router.StaticConfig `mapstructure:"static_dirs"`
	Extensions   []ExtensionConfig     `mapstructure:"extensions"`
	Sitemap      SitemapConfig         `mapstructure:"sitemap"`
	Flags        map[string]any        `mapstructure:"flags"`

	// Fields is the untagged podspec.
	Fields map[string]any `mapstructure:"-"`

	loc localization
}

// Localization is the pod-level localization config.
type Localization struct {
	DefaultLocale string            `mapstructure:"default_locale"`
	Locales       []string          `mapstructure:"locales"`
	Aliases       map[string]string `mapstructure:"aliases"`
	Groups        map[string]any    `mapstructure:"groups"`
	Path          string            `mapstructure:"path"`
}

// ExtensionConfig enables a registered extension factory.
type ExtensionConfig struct {
	Name    string         `mapstructure:"name"`
	Options map[string]any `mapstructure:"options"`
}

// SitemapConfig enables the generated sitemap route.
type SitemapConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Path        string   `mapstructure:"path"`
	Collections []string `mapstructure:"collections"`
	Locales     []string `mapstructure:"locales"`
	// BaseURL prefixes every <loc>.
	BaseURL string `mapstructure:"base_url"`
}

// DefaultSitemapPath is served when the sitemap is enabled without a path.
const DefaultSitemapPath = "/sitemap.xml"

// ParsePodspec decodes an already tag-resolved podspec map. Tagged keys are
// untagged against env.
func ParsePodspec(raw map[string]any, env string) (*Podspec, error) {
	fields := untag.Untag(raw, "", untag.Params{"env": untag.RegexResolver{Value: env}})
	if fields == nil {
		fields = map[string]any{}
	}

	spec := &Podspec{}
	if err := decode(fields, spec); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "decode "+PodspecPath)
	}
	spec.Fields = fields
	spec.loc = readLocalization(fields, "")

	if len(spec.StaticDirs) == 0 {
		spec.StaticDirs = []router.StaticConfig{{StaticDir: "/static/", ServeAt: "/static/"}}
	}
	if spec.Sitemap.Enabled && spec.Sitemap.Path == "" {
		spec.Sitemap.Path = DefaultSitemapPath
	}
	for _, locale := range spec.loc.locales {
		if err := catalog.ValidateLocale(locale); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// DefaultLocale returns the pod default locale, possibly empty.
func (s *Podspec) DefaultLocale() string {
	return s.loc.defaultLocale
}

// Locales returns the pod locales.
func (s *Podspec) Locales() []string {
	return append([]string(nil), s.loc.locales...)
}

// Alias returns the URL alias of locale, or locale itself.
func (s *Podspec) Alias(locale string) string {
	aliases := make([]string, 0, len(s.Localization.Aliases))
	for alias := range s.Localization.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if s.Localization.Aliases[alias] == locale {
			return alias
		}
	}
	return locale
}

// Unalias maps a URL alias back to its locale.
func (s *Podspec) Unalias(alias string) string {
	if locale, ok := s.Localization.Aliases[alias]; ok {
		return locale
	}
	return alias
}

// Flag returns a feature flag as a bool.
func (s *Podspec) Flag(name string) bool {
	return cast.ToBool(s.Flags[name])
}

// localization is the normalized view of a "$localization" block at one level
// of the document -> collection -> pod chain.
type localization struct {
	defaultLocale string
	locales       []string
	// localesDefined is set when the level declares locales, including an
	// explicit null meaning no locales.
	localesDefined bool
	path           string
	groups         map[string]any
}

// readLocalization reads localization config. prefix is "$" for documents
// and blueprints and "" for the podspec.
func readLocalization(fields map[string]any, prefix string) localization {
	var loc localization
	block, hasBlock := fields[prefix+"localization"]
	if hasBlock && block == nil {
		// "$localization: null" disables localization at this level.
		loc.localesDefined = true
		return loc
	}
	m := cast.ToStringMap(block)
	loc.defaultLocale = cast.ToString(m["default_locale"])
	loc.path = cast.ToString(m["path"])
	loc.groups = cast.ToStringMap(m["groups"])

	if v, ok := m["locales"]; ok {
		loc.localesDefined = true
		loc.locales = toLocales(v)
	}
	if prefix != "" {
		if v, ok := fields[prefix+"locales"]; ok {
			loc.localesDefined = true
			loc.locales = toLocales(v)
		}
	}
	return loc
}

func toLocales(v any) []string {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	locales, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return locales
}

func (l localization) groupSource() untag.GroupSource {
	return untag.MapGroups(l.groups)
}
