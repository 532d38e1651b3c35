//go:build property

package untag

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestUntagProperties validates untag over arbitrary mixes of tagged keys.
func TestUntagProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	keyGen := gen.OneConstOf(
		"title",
		"title@",
		"title@#",
		"title@de",
		"title@fr|it",
		"title@de.*",
		"title@env.prod",
		"title@env.staging",
		"body",
		"body@en_.*",
		"body@locale.eu",
		"nav@",
	)
	localeGen := gen.OneConstOf("en", "en_GB", "de", "de_AT", "fr", "it", "ja")
	params := Params{
		"env":    RegexResolver{Value: "prod"},
		"locale": NewLocaleGroupResolver(MapGroups(map[string]any{"eu": []any{"de", "fr"}})),
	}

	properties.Property("untag is idempotent", prop.ForAll(
		func(keys []string, locale string) bool {
			once := Untag(fieldsOf(keys), locale, params)
			return reflect.DeepEqual(once, Untag(once, locale, params))
		},
		gen.SliceOf(keyGen), localeGen,
	))

	properties.Property("only marked lists keep a tag", prop.ForAll(
		func(keys []string, locale string) bool {
			for key, value := range Untag(fieldsOf(keys), locale, params) {
				if !strings.Contains(key, "@") {
					continue
				}
				if _, isList := value.([]any); !isList || !strings.HasSuffix(key, "@") {
					return false
				}
			}
			return true
		},
		gen.SliceOf(keyGen), localeGen,
	))

	properties.Property("every value comes from a key of the same name", prop.ForAll(
		func(keys []string, locale string) bool {
			fields := fieldsOf(keys)
			for key, value := range Untag(fields, locale, params) {
				plain := strings.TrimSuffix(key, "@")
				if s, ok := value.(string); ok && !strings.HasPrefix(s, plain+"|") {
					return false
				}
			}
			return true
		},
		gen.SliceOf(keyGen), localeGen,
	))

	properties.Property("input is never modified", prop.ForAll(
		func(keys []string, locale string) bool {
			fields := fieldsOf(keys)
			before := fieldsOf(keys)
			Untag(fields, locale, params)
			return reflect.DeepEqual(before, fields)
		},
		gen.SliceOf(keyGen), localeGen,
	))

	properties.TestingRun(t)
}

// fieldsOf builds a map whose string values name the key that holds them.
// "nav@" holds a list so marked lists are exercised.
func fieldsOf(keys []string) map[string]any {
	fields := make(map[string]any, len(keys))
	for _, key := range keys {
		plain := key
		if i := strings.Index(key, "@"); i >= 0 {
			plain = key[:i]
		}
		if plain == "nav" {
			fields[key] = []any{"home", "about"}
			continue
		}
		fields[key] = plain + "|" + key
	}
	return fields
}
