package pod

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/conneroisu/grow/internal/errors"
)

var boundaryPattern = regexp.MustCompile(`(?m)^-{3,}[ \t]*\r?$`)

// FrontMatterPart is one YAML part of a document file. Parts after the first
// apply only to the locales they declare.
type FrontMatterPart struct {
	// Offset is the byte offset of the part within the file.
	Offset  int
	Raw     string
	Fields  map[string]any
	Locales []string
}

// FrontMatter is a parsed document file.
type FrontMatter struct {
	PodPath string
	Parts   []FrontMatterPart
	Body    string
	HasBody bool
}

// Base returns the fields of the base part.
func (fm *FrontMatter) Base() map[string]any {
	if len(fm.Parts) == 0 {
		return map[string]any{}
	}
	return fm.Parts[0].Fields
}

// Localized returns the base fields with every part declaring locale deep
// merged over them. The parts' own locale declarations are dropped.
func (fm *FrontMatter) Localized(locale string) map[string]any {
	out := deepCopy(fm.Base())
	if locale == "" {
		return out
	}
	for _, part := range fm.Parts[min(1, len(fm.Parts)):] {
		if !containsLocale(part.Locales, locale) {
			continue
		}
		fields := deepCopy(part.Fields)
		delete(fields, "$locale")
		delete(fields, "$locales")
		deepMerge(out, fields)
	}
	return out
}

// PartLocales returns every locale declared by a localized part.
func (fm *FrontMatter) PartLocales() []string {
	var out []string
	for _, part := range fm.Parts[min(1, len(fm.Parts)):] {
		for _, l := range part.Locales {
			if !containsLocale(out, l) {
				out = append(out, l)
			}
		}
	}
	return out
}

// splitFrontMatter splits content into YAML parts and a body. In YAML files
// every "---"-separated segment is a part and there is no body. In other
// files front matter exists only when the content opens with a boundary; the
// text after the last boundary is the body.
func (l *tagLoader) splitFrontMatter(podPath string, content []byte, format Format) (*FrontMatter, error) {
	text := string(content)
	fm := &FrontMatter{PodPath: podPath}
	bounds := boundaryPattern.FindAllStringIndex(text, -1)

	type segment struct {
		start, end int
	}
	var segments []segment

	if format == FormatYAML {
		start := 0
		for _, b := range bounds {
			segments = append(segments, segment{start, b[0]})
			start = b[1]
		}
		segments = append(segments, segment{start, len(text)})
	} else {
		if len(bounds) == 0 || strings.TrimSpace(text[:bounds[0][0]]) != "" {
			fm.Body = text
			fm.HasBody = strings.TrimSpace(text) != ""
			return fm, nil
		}
		if len(bounds) == 1 {
			return nil, errors.NewFormatError(podPath, bounds[0][0], "front matter is not terminated", nil)
		}
		for i := 0; i+1 < len(bounds); i++ {
			segments = append(segments, segment{bounds[i][1], bounds[i+1][0]})
		}
		fm.Body = strings.TrimPrefix(strings.TrimPrefix(text[bounds[len(bounds)-1][1]:], "\r"), "\n")
		fm.HasBody = strings.TrimSpace(fm.Body) != ""
	}

	for _, seg := range segments {
		raw := text[seg.start:seg.end]
		if strings.TrimSpace(raw) == "" {
			// Leading and trailing boundaries in YAML files open empty
			// segments.
			if format == FormatYAML {
				continue
			}
			if len(fm.Parts) == 0 {
				fm.Parts = append(fm.Parts, FrontMatterPart{Offset: seg.start, Fields: map[string]any{}})
				continue
			}
		}
		part, err := l.parsePart(podPath, raw, seg.start, len(fm.Parts) == 0)
		if err != nil {
			return nil, err
		}
		fm.Parts = append(fm.Parts, part)
	}
	if len(fm.Parts) == 0 {
		fm.Parts = []FrontMatterPart{{Fields: map[string]any{}}}
	}
	return fm, nil
}

func (l *tagLoader) parsePart(podPath, raw string, offset int, base bool) (FrontMatterPart, error) {
	part := FrontMatterPart{Offset: offset, Raw: raw}
	v, err := l.decodeYAML([]byte(raw))
	if err != nil {
		return part, errors.NewFormatError(podPath, offset, "invalid YAML", err)
	}
	if v == nil {
		v = map[string]any{}
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return part, errors.NewFormatError(podPath, offset, "front matter must be a mapping", nil)
	}
	part.Fields = fields
	if base {
		return part, nil
	}

	switch {
	case fields["$locale"] != nil:
		part.Locales = []string{cast.ToString(fields["$locale"])}
	case fields["$locales"] != nil:
		locales, err := cast.ToStringSliceE(fields["$locales"])
		if err != nil {
			return part, errors.NewFormatError(podPath, offset, "$locales must be a list of locales", err)
		}
		part.Locales = locales
	}
	if len(part.Locales) == 0 {
		return part, errors.NewFormatError(podPath, offset, "localized part declares neither $locale nor $locales", nil)
	}
	return part, nil
}

func containsLocale(locales []string, locale string) bool {
	for _, l := range locales {
		if l == locale {
			return true
		}
	}
	return false
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// deepMerge merges src into dst. Nested maps merge; everything else in src
// replaces dst.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				deepMerge(dm, sm)
				continue
			}
		}
		dst[k] = copyValue(v)
	}
}
