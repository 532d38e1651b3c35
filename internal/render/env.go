// Package render renders routes: a pool of per-locale template environments
// and a batcher that fans routes out over the pool and collects results and
// failures.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/grow/internal/errors"
)

// ViewsDir is the pod directory holding templates.
const ViewsDir = "/views"

// Loader reads template sources.
type Loader interface {
	ReadFile(podPath string) ([]byte, error)
	List(dir string) ([]string, error)
}

// Env is a template environment for one locale. Templates are parsed lazily
// from the loader on first use. Render holds the environment lock for the
// duration of a single template execution, so per-render functions can be
// bound safely.
type Env struct {
	Locale string
	// Globals are available to every template as .Globals.
	Globals map[string]any

	mu        sync.Mutex
	loader    Loader
	funcs     template.FuncMap
	templates *template.Template
}

// NewEnv creates an environment. funcs declares every function templates may
// call; Render may rebind them per call.
func NewEnv(locale string, loader Loader, funcs template.FuncMap) *Env {
	all := template.FuncMap{}
	for name, fn := range builtinFuncs() {
		all[name] = fn
	}
	for name, fn := range funcs {
		all[name] = fn
	}
	return &Env{
		Locale:  locale,
		Globals: make(map[string]any),
		loader:  loader,
		funcs:   all,
	}
}

// AddFuncs declares additional template functions. It must be called before
// the first render.
func (e *Env) AddFuncs(funcs template.FuncMap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, fn := range funcs {
		e.funcs[name] = fn
	}
}

// FuncNames returns the declared template function names, sorted.
func (e *Env) FuncNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.funcs))
	for name := range e.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops parsed templates so the next render reloads them.
func (e *Env) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = nil
}

func (e *Env) load() error {
	if e.templates != nil {
		return nil
	}
	files, err := e.loader.List(ViewsDir)
	if err != nil {
		return err
	}
	root := template.New("").Funcs(e.funcs)
	for _, file := range files {
		data, err := e.loader.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := root.New(file).Parse(string(data)); err != nil {
			return errors.NewRenderError(errors.ErrCodeRenderFailed,
				fmt.Sprintf("parse template %s", file), err)
		}
	}
	e.templates = root
	return nil
}

// Has reports whether the view exists.
func (e *Env) Has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.load(); err != nil {
		return false
	}
	return e.templates.Lookup(normalizeName(name)) != nil
}

// Render executes the named view with data. bound replaces declared
// functions for this call only.
func (e *Env) Render(name string, data any, bound template.FuncMap) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(); err != nil {
		return nil, err
	}
	name = normalizeName(name)
	tmpl := e.templates.Lookup(name)
	if tmpl == nil {
		return nil, errors.NewRenderError(errors.ErrCodeTemplateNotFound,
			"template not found: "+name, nil)
	}
	if len(bound) > 0 {
		e.templates.Funcs(bound)
		defer e.templates.Funcs(e.funcs)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeRenderFailed,
			fmt.Sprintf("execute template %s", name), err)
	}
	return buf.Bytes(), nil
}

// RenderString parses and executes an inline template body, used for
// documents whose body is itself a template.
func (e *Env) RenderString(name, body string, data any, bound template.FuncMap) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(); err != nil {
		return nil, err
	}
	funcs := template.FuncMap{}
	for k, v := range e.funcs {
		funcs[k] = v
	}
	for k, v := range bound {
		funcs[k] = v
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(body)
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeRenderFailed, "parse "+name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeRenderFailed, "execute "+name, err)
	}
	return buf.Bytes(), nil
}

func normalizeName(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = path.Join(ViewsDir, name)
	}
	return path.Clean(name)
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"safe":  func(s string) template.HTML { return template.HTML(s) },
		"join":  strings.Join,
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"title": cases.Title(language.Und).String,
		"default": func(fallback, v any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
	}
}
