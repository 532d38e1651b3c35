package catalog

import (
	"fmt"
	"sort"
	"strings"
	"text/template/parse"

	"github.com/conneroisu/grow/internal/errors"
)

// TranslateFuncs are the template functions whose string arguments are
// extracted as messages.
var TranslateFuncs = []string{"_", "gettext"}

const (
	taggedSuffix  = "@"
	commentSuffix = "@#"
)

func isTranslateFunc(name string) bool {
	for _, f := range TranslateFuncs {
		if f == name {
			return true
		}
	}
	return false
}

// Extractor collects messages into a template catalog.
type Extractor struct {
	Template *Catalog
}

// NewExtractor creates an extractor with an empty template.
func NewExtractor() *Extractor {
	return &Extractor{Template: New("")}
}

// Data extracts tagged string fields from decoded front matter or YAML.
// A field is tagged when its key ends in "@"; a sibling key ending in "@#"
// supplies the translator comment.
func (e *Extractor) Data(podPath string, data any) int {
	return e.walk(podPath, data)
}

func (e *Extractor) walk(podPath string, data any) int {
	count := 0
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.HasSuffix(k, commentSuffix) {
				continue
			}
			if strings.HasSuffix(k, taggedSuffix) {
				comment, _ := v[strings.TrimSuffix(k, taggedSuffix)+commentSuffix].(string)
				count += e.addValues(podPath, v[k], comment)
				continue
			}
			count += e.walk(podPath, v[k])
		}
	case []any:
		for _, item := range v {
			count += e.walk(podPath, item)
		}
	}
	return count
}

func (e *Extractor) addValues(podPath string, value any, comment string) int {
	switch v := value.(type) {
	case string:
		if v == "" {
			return 0
		}
		e.Template.Add(v, podPath, comment)
		return 1
	case []any:
		count := 0
		for _, item := range v {
			count += e.addValues(podPath, item, comment)
		}
		return count
	case map[string]any:
		return e.walk(podPath, v)
	}
	return 0
}

// View extracts translate-function calls with literal string arguments
// from a view template. Both {{ _ "Hello" }} and {{ "Hello" | _ }} are
// recognized.
func (e *Extractor) View(podPath, src string) (int, error) {
	tree := parse.New(podPath)
	tree.Mode = parse.SkipFuncCheck | parse.ParseComments
	treeSet := make(map[string]*parse.Tree)
	if _, err := tree.Parse(src, "", "", treeSet); err != nil {
		return 0, errors.NewFormatError(podPath, 0, "parse template", err)
	}

	count := 0
	for _, t := range treeSet {
		if t.Root == nil {
			continue
		}
		walkNode(t.Root, func(id string, pos parse.Pos) {
			line := 1 + strings.Count(src[:int(pos)], "\n")
			e.Template.Add(id, fmt.Sprintf("%s:%d", podPath, line), "")
			count++
		})
	}
	return count, nil
}

func walkNode(node parse.Node, found func(string, parse.Pos)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walkNode(child, found)
		}
	case *parse.ActionNode:
		walkNode(n.Pipe, found)
	case *parse.IfNode:
		walkBranch(&n.BranchNode, found)
	case *parse.RangeNode:
		walkBranch(&n.BranchNode, found)
	case *parse.WithNode:
		walkBranch(&n.BranchNode, found)
	case *parse.TemplateNode:
		if n.Pipe != nil {
			walkNode(n.Pipe, found)
		}
	case *parse.PipeNode:
		if n == nil {
			return
		}
		var prev *parse.CommandNode
		for _, cmd := range n.Cmds {
			walkCommand(cmd, prev, found)
			prev = cmd
		}
	}
}

func walkBranch(b *parse.BranchNode, found func(string, parse.Pos)) {
	walkNode(b.Pipe, found)
	walkNode(b.List, found)
	if b.ElseList != nil {
		walkNode(b.ElseList, found)
	}
}

func walkCommand(cmd, prev *parse.CommandNode, found func(string, parse.Pos)) {
	if len(cmd.Args) > 0 {
		if ident, ok := cmd.Args[0].(*parse.IdentifierNode); ok && isTranslateFunc(ident.Ident) {
			switch {
			case len(cmd.Args) > 1:
				if s, ok := cmd.Args[1].(*parse.StringNode); ok {
					found(s.Text, s.Position())
				}
			case prev != nil && len(prev.Args) == 1:
				if s, ok := prev.Args[0].(*parse.StringNode); ok {
					found(s.Text, s.Position())
				}
			}
		}
	}
	for _, arg := range cmd.Args {
		if pipe, ok := arg.(*parse.PipeNode); ok {
			walkNode(pipe, found)
		}
	}
}
