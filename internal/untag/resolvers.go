package untag

import "strings"

// RegexResolver matches the tag value against a fixed configured string, for
// example the name of the current environment for "@env.<name>" keys. The tag
// value is treated as an anchored, case-insensitive regular expression; values
// that fail to compile are compared literally.
type RegexResolver struct {
	Value string
}

// Matches implements Resolver.
func (r RegexResolver) Matches(value, _ string) bool {
	if r.Value == "" {
		return false
	}
	re, err := compileAnchored(value)
	if err != nil {
		return strings.EqualFold(value, r.Value)
	}
	return re.MatchString(r.Value)
}

// GroupSource looks up a named locale group. Sources are consulted in order;
// the first that defines the group wins.
type GroupSource func(name string) (any, bool)

// MapGroups adapts a localization "groups" map into a GroupSource.
func MapGroups(groups map[string]any) GroupSource {
	return func(name string) (any, bool) {
		if groups == nil {
			return nil, false
		}
		v, ok := groups[name]
		return v, ok
	}
}

// LocaleGroupResolver resolves "@locale.<group>" keys. A group is either a
// list of locale identifiers, a regular expression string, or a list mixing
// both; the current locale matches if it matches any member.
type LocaleGroupResolver struct {
	Sources []GroupSource
}

// NewLocaleGroupResolver returns a resolver consulting sources in order
// (typically document, collection, then pod localization config).
func NewLocaleGroupResolver(sources ...GroupSource) *LocaleGroupResolver {
	return &LocaleGroupResolver{Sources: sources}
}

// Matches implements Resolver.
func (r *LocaleGroupResolver) Matches(group, locale string) bool {
	if locale == "" {
		return false
	}
	for _, source := range r.Sources {
		if source == nil {
			continue
		}
		members, ok := source(group)
		if !ok {
			continue
		}
		return matchMembers(members, locale)
	}
	return false
}

func matchMembers(members any, locale string) bool {
	switch m := members.(type) {
	case string:
		return MatchLocale(m, locale)
	case []string:
		for _, item := range m {
			if MatchLocale(item, locale) {
				return true
			}
		}
	case []any:
		for _, item := range m {
			if matchMembers(item, locale) {
				return true
			}
		}
	case map[string]any:
		if re, ok := m["regex"]; ok && matchMembers(re, locale) {
			return true
		}
		if locales, ok := m["locales"]; ok {
			return matchMembers(locales, locale)
		}
	}
	return false
}
