// Package untag collapses tagged field keys ("title@fr", "title@env.prod",
// "title@") into plain keys for a given locale and set of named parameters.
//
// Resolution order within a single map is deterministic: parameter overrides
// ("name@<param>.<value>") win over locale overrides ("name@<regex>"), which
// win over base values ("name" and "name@"). Among overrides of the same class
// the lexically smallest key wins. Extraction comments ("name@#") are always
// dropped.
package untag

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Resolver decides whether a "name@<param>.<value>" key applies.
type Resolver interface {
	// Matches reports whether the tagged value applies for value, given the
	// locale being untagged.
	Matches(value, locale string) bool
}

// Params maps parameter names ("env", "locale") to their resolvers.
type Params map[string]Resolver

type keyClass int

const (
	classComment keyClass = iota
	classParam
	classLocale
	classBase
)

type taggedKey struct {
	raw      string
	plain    string
	selector string
	class    keyClass
	marked   bool
}

// Untag returns a copy of data with every tagged key resolved against locale
// and params. The input is never modified.
func Untag(data map[string]any, locale string, params Params) map[string]any {
	if data == nil {
		return nil
	}
	return untagMap(data, locale, params)
}

// Value untags an arbitrary decoded value (map, list or scalar).
func Value(v any, locale string, params Params) any {
	return untagValue(v, locale, params)
}

func untagValue(v any, locale string, params Params) any {
	switch val := v.(type) {
	case map[string]any:
		return untagMap(val, locale, params)
	case map[any]any:
		converted := make(map[string]any, len(val))
		for k, item := range val {
			converted[fmt.Sprint(k)] = item
		}
		return untagMap(converted, locale, params)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = untagValue(item, locale, params)
		}
		return out
	default:
		return v
	}
}

func untagMap(data map[string]any, locale string, params Params) map[string]any {
	keys := make([]taggedKey, 0, len(data))
	for raw := range data {
		keys = append(keys, classify(raw, params))
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].class != keys[j].class {
			return keys[i].class < keys[j].class
		}
		// Bare keys go before "name@" so the marked value is the one kept.
		if keys[i].class == classBase && keys[i].plain == keys[j].plain {
			return !keys[i].marked
		}
		return keys[i].raw < keys[j].raw
	})

	out := make(map[string]any, len(data))
	overridden := make(map[string]bool)
	retag := make(map[string]bool)

	for _, k := range keys {
		value := data[k.raw]
		switch k.class {
		case classComment:
			continue
		case classParam:
			name, paramValue, _ := strings.Cut(k.selector, ".")
			if overridden[k.plain] || !params[name].Matches(paramValue, locale) {
				continue
			}
			out[k.plain] = untagValue(value, locale, params)
			overridden[k.plain] = true
		case classLocale:
			if overridden[k.plain] || !MatchLocale(k.selector, locale) {
				continue
			}
			out[k.plain] = untagValue(value, locale, params)
			overridden[k.plain] = true
		case classBase:
			if k.marked {
				if _, isList := value.([]any); isList {
					retag[k.plain] = true
				}
			}
			if overridden[k.plain] {
				continue
			}
			out[k.plain] = untagValue(value, locale, params)
		}
	}

	for plain := range retag {
		if list, ok := out[plain].([]any); ok {
			out[plain+"@"] = list
		}
	}
	return out
}

func classify(raw string, params Params) taggedKey {
	if strings.HasSuffix(raw, "@#") {
		return taggedKey{raw: raw, class: classComment}
	}
	if strings.HasSuffix(raw, "@") {
		return taggedKey{raw: raw, plain: strings.TrimSuffix(raw, "@"), class: classBase, marked: true}
	}
	i := strings.LastIndex(raw, "@")
	if i < 0 {
		return taggedKey{raw: raw, plain: raw, class: classBase}
	}
	k := taggedKey{raw: raw, plain: raw[:i], selector: raw[i+1:]}
	// A prefix naming no resolver is a locale pattern such as "de.*"; an
	// unknown parameter like "env.prod" then simply matches no locale.
	if name, _, ok := strings.Cut(k.selector, "."); ok && params[name] != nil {
		k.class = classParam
		return k
	}
	k.class = classLocale
	return k
}

var localePatterns sync.Map

// MatchLocale reports whether locale matches the case-insensitive, anchored
// regular expression pattern. Invalid patterns never match.
func MatchLocale(pattern, locale string) bool {
	if locale == "" {
		return false
	}
	re, err := compileAnchored(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(locale)
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if cached, ok := localePatterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	localePatterns.Store(pattern, re)
	return re, nil
}
