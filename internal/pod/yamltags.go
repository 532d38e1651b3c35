package pod

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/podpath"
)

// DocRef is a lazy reference to a document produced by "!g.doc". An empty
// locale resolves in the locale of the referencing document.
type DocRef struct {
	PodPath string
	Locale  string
}

// StaticRef is a reference to a static file produced by "!g.static".
type StaticRef struct {
	PodPath string
}

// URLRef is a reference to the serving URL of a document or static file,
// produced by "!g.url".
type URLRef struct {
	PodPath string
}

// StringsDir holds the files addressed by "!g.string name.key".
const StringsDir = "/content/strings"

const maxTagDepth = 16

// Constructor builds the value of a scalar tagged with a registered tag.
type Constructor func(l *tagLoader, value string) (any, error)

func defaultConstructors() map[string]Constructor {
	return map[string]Constructor{
		"!g.doc":    constructDoc,
		"!g.static": constructStatic,
		"!g.url":    constructURL,
		"!g.yaml":   constructYAML,
		"!g.json":   constructJSON,
		"!g.csv":    constructCSV,
		"!g.string": constructString,
	}
}

// tagLoader decodes YAML for one source file, resolving registered tags and
// recording a dependency edge from the source to every file a tag reads.
type tagLoader struct {
	pod    *Pod
	source string
	depth  int
}

func (p *Pod) newTagLoader(source string) *tagLoader {
	return &tagLoader{pod: p, source: podpath.RootPodPath(source)}
}

// decodeYAML parses text into a value with tags resolved.
func (l *tagLoader) decodeYAML(text []byte) (any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(text, &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return nil, nil
	}
	return l.decode(&node)
}

func (l *tagLoader) decode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return l.decode(node.Content[0])
	case yaml.AliasNode:
		return l.decode(node.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := l.decode(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			v, err := l.decode(value)
			if err != nil {
				return nil, err
			}
			if key.Tag == "!!merge" {
				mergeUnder(out, v)
				continue
			}
			out[key.Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		if isCustomTag(node.Tag) {
			c, ok := l.pod.constructors[node.Tag]
			if !ok {
				return nil, fmt.Errorf("line %d: unknown tag %s", node.Line, node.Tag)
			}
			v, err := c(l, strings.TrimSpace(node.Value))
			if err != nil {
				return nil, fmt.Errorf("line %d: %s %s: %w", node.Line, node.Tag, node.Value, err)
			}
			return v, nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

func isCustomTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

// mergeUnder applies a YAML merge key: values already set win.
func mergeUnder(dst map[string]any, v any) {
	switch src := v.(type) {
	case map[string]any:
		for k, item := range src {
			if _, ok := dst[k]; !ok {
				dst[k] = item
			}
		}
	case []any:
		for _, item := range src {
			mergeUnder(dst, item)
		}
	}
}

func (l *tagLoader) depend(ref string) string {
	ref = podpath.Clean(ref)
	if l.source != "" {
		l.pod.cache.Deps.Add(l.source, ref)
	}
	return ref
}

// splitQuery splits "/data/a.yaml?key.sub" into the file and key path.
func splitQuery(value string) (string, string) {
	file, key, _ := strings.Cut(value, "?")
	return file, key
}

func (l *tagLoader) readNested(file string) (any, error) {
	if l.depth >= maxTagDepth {
		return nil, errors.New("tag references nest too deeply")
	}
	data, err := l.pod.ReadFile(file)
	if err != nil {
		return nil, err
	}
	nested := &tagLoader{pod: l.pod, source: l.source, depth: l.depth + 1}
	return nested.decodeYAML(data)
}

func lookupKey(v any, key string) (any, error) {
	if key == "" {
		return v, nil
	}
	for _, part := range strings.Split(key, ".") {
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: not a mapping", key)
		}
		next, ok := m[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", key)
		}
		v = next
	}
	return v, nil
}

func constructDoc(l *tagLoader, value string) (any, error) {
	return DocRef{PodPath: l.depend(value)}, nil
}

func constructStatic(l *tagLoader, value string) (any, error) {
	return StaticRef{PodPath: l.depend(value)}, nil
}

func constructURL(l *tagLoader, value string) (any, error) {
	return URLRef{PodPath: l.depend(value)}, nil
}

func constructYAML(l *tagLoader, value string) (any, error) {
	file, key := splitQuery(value)
	v, err := l.readNested(l.depend(file))
	if err != nil {
		return nil, err
	}
	return lookupKey(v, key)
}

func constructJSON(l *tagLoader, value string) (any, error) {
	file, key := splitQuery(value)
	data, err := l.pod.ReadFile(l.depend(file))
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return lookupKey(v, key)
}

func constructCSV(l *tagLoader, value string) (any, error) {
	data, err := l.pod.ReadFile(l.depend(value))
	if err != nil {
		return nil, err
	}
	return parseCSV(data)
}

func parseCSV(data []byte) ([]any, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []any{}, nil
	}
	header := records[0]
	rows := make([]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// constructString resolves "name.key.path" against /content/strings/name.yaml,
// or "/file.yaml?key.path" against any file.
func constructString(l *tagLoader, value string) (any, error) {
	file, key := splitQuery(value)
	if !strings.HasPrefix(value, "/") {
		name, rest, ok := strings.Cut(value, ".")
		if !ok {
			return nil, fmt.Errorf("expected <file>.<key>, got %q", value)
		}
		file, key = path.Join(StringsDir, name+".yaml"), rest
	}
	if key == "" {
		return nil, errors.New("missing key")
	}
	v, err := l.readNested(l.depend(file))
	if err != nil {
		return nil, err
	}
	return lookupKey(v, key)
}
