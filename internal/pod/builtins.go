package pod

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/render"
	"github.com/conneroisu/grow/internal/untag"
)

// renderScope binds template builtins to the document being rendered so that
// every file a template reads becomes a dependency of that document.
type renderScope struct {
	ctx    context.Context
	pod    *Pod
	source string
	locale string
}

func (s *renderScope) record(ref string) {
	if s.source != "" {
		s.pod.cache.Deps.Add(s.source, ref)
	}
}

func (s *renderScope) pickLocale(locale []string) string {
	if len(locale) > 0 && locale[0] != "" {
		return locale[0]
	}
	return s.locale
}

// templateFuncs returns the builtins for one render. source may be empty
// for environment-level declarations.
func (p *Pod) templateFuncs(ctx context.Context, source, locale string) template.FuncMap {
	s := &renderScope{ctx: ctx, pod: p, source: source, locale: locale}
	return template.FuncMap{
		"_":        s.gettext,
		"gettext":  s.gettext,
		"doc":      s.doc,
		"docs":     s.docs,
		"static":   s.static,
		"url":      s.url,
		"yaml":     s.yaml,
		"json":     s.json,
		"csv":      s.csv,
		"markdown": s.markdown,
	}
}

func (s *renderScope) gettext(id string, args ...any) string {
	out := s.pod.catalogs.Gettext(s.ctx, s.locale, id)
	if len(args) > 0 {
		return fmt.Sprintf(out, args...)
	}
	return out
}

func (s *renderScope) doc(ref any, locale ...string) (*Document, error) {
	var podPath string
	switch r := ref.(type) {
	case string:
		podPath = r
	case DocRef:
		podPath = r.PodPath
		if r.Locale != "" && len(locale) == 0 {
			locale = []string{r.Locale}
		}
	case *Document:
		podPath = r.podPath
	default:
		return nil, fmt.Errorf("doc: unsupported reference %T", ref)
	}
	s.record(podPath)
	return s.pod.GetDoc(podPath, s.pickLocale(locale))
}

// docs lists a collection's servable documents and records a dependency on
// the whole collection directory, so adding or removing any of its documents
// invalidates the caller.
func (s *renderScope) docs(collection string, locale ...string) ([]*Document, error) {
	c, err := s.pod.GetCollection(collection)
	if err != nil {
		return nil, err
	}
	s.record(c.path)
	return c.ListServableDocuments(s.pickLocale(locale))
}

func (s *renderScope) static(ref any) (*StaticDocument, error) {
	var podPath string
	switch r := ref.(type) {
	case string:
		podPath = r
	case StaticRef:
		podPath = r.PodPath
	default:
		return nil, fmt.Errorf("static: unsupported reference %T", ref)
	}
	s.record(podPath)
	return s.pod.GetStatic(s.ctx, podPath, s.locale)
}

func (s *renderScope) url(ref any) (string, error) {
	var podPath string
	switch r := ref.(type) {
	case *Document:
		return r.ServingPath()
	case *StaticDocument:
		return r.ServingPath()
	case DocRef:
		podPath = r.PodPath
	case StaticRef:
		podPath = r.PodPath
	case URLRef:
		podPath = r.PodPath
	case string:
		podPath = r
	default:
		return "", fmt.Errorf("url: unsupported reference %T", ref)
	}
	if podpath.IsContent(podPath) && IsDocumentFile(podPath) {
		doc, err := s.doc(podPath)
		if err != nil {
			return "", err
		}
		return doc.ServingPath()
	}
	st, err := s.static(podPath)
	if err != nil {
		return "", err
	}
	return st.ServingPath()
}

func (s *renderScope) yaml(podPath string, key ...string) (any, error) {
	podPath = podpath.Clean(podPath)
	s.record(podPath)
	l := s.pod.newTagLoader(s.source)
	v, err := l.readNested(podPath)
	if err != nil {
		return nil, err
	}
	v, err = lookupKey(v, strings.Join(key, "."))
	if err != nil {
		return nil, err
	}
	return untag.Value(v, s.locale, untag.Params{"env": untag.RegexResolver{Value: s.pod.env}}), nil
}

func (s *renderScope) json(podPath string) (any, error) {
	podPath = podpath.Clean(podPath)
	s.record(podPath)
	data, err := s.pod.ReadFile(podPath)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *renderScope) csv(podPath string) ([]any, error) {
	podPath = podpath.Clean(podPath)
	s.record(podPath)
	data, err := s.pod.ReadFile(podPath)
	if err != nil {
		return nil, err
	}
	return parseCSV(data)
}

func (s *renderScope) markdown(src string) (template.HTML, error) {
	return RenderMarkdown(src)
}

// newEnv builds a render environment for locale. Extensions may add
// functions through jinja_extensions and adjust the environment through
// jinja_env_init.
func (p *Pod) newEnv(locale string) (*render.Env, error) {
	ctx := context.Background()
	env := render.NewEnv(locale, p.store, p.templateFuncs(ctx, "", locale))

	extra, err := p.hooks.Trigger(ctx, hooks.JinjaExtensions, template.FuncMap{}, locale)
	if funcs, ok := extra.(template.FuncMap); ok && len(funcs) > 0 {
		env.AddFuncs(funcs)
	}
	if err != nil {
		p.errs.Handle(ctx, err, "jinja_extensions hook failed", "locale", locale)
	}

	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	env.Globals["podspec"] = spec
	env.Globals["env"] = p.env

	result, err := p.hooks.Trigger(ctx, hooks.JinjaEnvInit, env, p)
	if initialized, ok := result.(*render.Env); ok && initialized != nil {
		env = initialized
	}
	if err != nil {
		p.errs.Handle(ctx, err, "jinja_env_init hook failed", "locale", locale)
	}
	return env, nil
}
