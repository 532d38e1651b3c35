// Package router maps serving paths to the documents, static files and
// generated resources that produce them.
//
// Routes live in two regions. Concrete routes have no parameters and are
// looked up directly. Abstract routes carry ":param" segments and are tried
// in insertion order when no concrete route matches. Iteration always follows
// insertion order.
package router

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
)

// Kind is the kind of resource a route serves.
type Kind string

const (
	KindDoc     Kind = "doc"
	KindStatic  Kind = "static"
	KindSitemap Kind = "sitemap"
	KindConsole Kind = "console"
)

// Meta identifies what a route serves.
type Meta struct {
	PodPath string
	Locale  string
	Options map[string]any
}

// Option returns a string option, or "".
func (m Meta) Option(key string) string {
	if v, ok := m.Options[key].(string); ok {
		return v
	}
	return ""
}

// Route is a single router entry.
type Route struct {
	Pattern string
	Kind    Kind
	Meta    Meta

	matcher *regexp.Regexp
	params  []string
}

// IsConcrete reports whether the route pattern has no parameters.
func (r *Route) IsConcrete() bool {
	return r.matcher == nil
}

// Params holds the values of matched route parameters.
type Params map[string]string

// LocalizedPath is the serving path of a document in one locale.
type LocalizedPath struct {
	Locale  string
	Path    string
	Default bool
}

// Document is a routable document.
type Document interface {
	PodPath() string
	// LocalizedPaths returns one path per locale the document is served in,
	// with exactly one marked as the default.
	LocalizedPaths() ([]LocalizedPath, error)
}

// DocRef names a document in a locale. An empty locale matches every locale.
type DocRef struct {
	PodPath string
	Locale  string
}

// Router holds the route table.
type Router struct {
	mu       sync.RWMutex
	routes   []*Route
	concrete map[string]*Route
	logger   logging.Logger
}

// New creates an empty router.
func New(logger logging.Logger) *Router {
	return &Router{
		concrete: make(map[string]*Route),
		logger:   logger.WithComponent("router"),
	}
}

// Add inserts a route. A concrete pattern already served by another
// document fails with a DuplicatePathsError; one served by the same pod path
// and locale is replaced.
func (r *Router) Add(pattern string, kind Kind, meta Meta) error {
	route := newRoute(pattern, kind, meta)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(route)
}

func (r *Router) add(route *Route) error {
	if route.IsConcrete() {
		if existing, ok := r.concrete[route.Pattern]; ok {
			if existing.Meta.PodPath != route.Meta.PodPath || existing.Meta.Locale != route.Meta.Locale {
				return &errors.DuplicatePathsError{
					Path:     route.Pattern,
					Existing: errors.PathSource{PodPath: existing.Meta.PodPath, Locale: existing.Meta.Locale},
					Incoming: errors.PathSource{PodPath: route.Meta.PodPath, Locale: route.Meta.Locale},
				}
			}
			r.removeWhere(func(x *Route) bool { return x == existing })
		}
		r.concrete[route.Pattern] = route
	} else {
		r.removeWhere(func(x *Route) bool { return x.Pattern == route.Pattern && !x.IsConcrete() })
	}
	r.routes = append(r.routes, route)
	return nil
}

func newRoute(pattern string, kind Kind, meta Meta) *Route {
	route := &Route{Pattern: pattern, Kind: kind, Meta: meta}
	route.matcher, route.params = compilePattern(pattern)
	return route
}

var paramPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// compilePattern turns "/:locale/static/:filename" into a matcher. A
// parameter ending a pattern without a trailing slash matches the rest of
// the path; any other parameter matches a single segment.
func compilePattern(pattern string) (*regexp.Regexp, []string) {
	locs := paramPattern.FindAllStringSubmatchIndex(pattern, -1)
	if len(locs) == 0 {
		return nil, nil
	}
	var b strings.Builder
	var names []string
	b.WriteString("^")
	last := 0
	for _, loc := range locs {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		name := pattern[loc[2]:loc[3]]
		names = append(names, name)
		if loc[1] == len(pattern) {
			b.WriteString("(.+)")
		} else {
			b.WriteString("([^/]+)")
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	return regexp.MustCompile(b.String()), names
}

// AddDoc adds one route per localized serving path of doc.
func (r *Router) AddDoc(doc Document) error {
	paths, err := doc.LocalizedPaths()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addDoc(doc.PodPath(), paths)
}

// addDoc adds every path of one document or none of them: a conflict on any
// locale restores the routes as they were before the call.
func (r *Router) addDoc(podPath string, paths []LocalizedPath) error {
	restore := r.checkpoint()
	for _, lp := range paths {
		meta := Meta{PodPath: podPath, Locale: lp.Locale}
		if lp.Default {
			meta.Options = map[string]any{"default": true}
		}
		if err := r.add(newRoute(lp.Path, KindDoc, meta)); err != nil {
			restore()
			return err
		}
	}
	return nil
}

// checkpoint captures the route table. The returned func puts it back.
// Callers hold r.mu.
func (r *Router) checkpoint() func() {
	snapshot := append([]*Route(nil), r.routes...)
	return func() {
		r.routes = snapshot
		r.concrete = make(map[string]*Route, len(snapshot))
		for _, route := range snapshot {
			if route.IsConcrete() {
				r.concrete[route.Pattern] = route
			}
		}
	}
}

// AddDocs adds every document, collecting duplicate path errors so that all
// conflicts are reported at once.
func (r *Router) AddDocs(docs []Document) error {
	bulk := errors.NewBulkErrors()
	for _, doc := range docs {
		if err := r.AddDoc(doc); err != nil {
			bulk.Add(doc.PodPath(), "", err, "")
		}
	}
	return bulk.ErrOrNil()
}

// Match resolves path to a route. Concrete routes win over abstract ones.
func (r *Router) Match(path string) (*Route, Params, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.concrete[path]; ok {
		return route, Params{}, true
	}
	for _, route := range r.routes {
		if route.IsConcrete() {
			continue
		}
		m := route.matcher.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(Params, len(route.params))
		for i, name := range route.params {
			params[name] = m[i+1]
		}
		return route, params, true
	}
	return nil, nil, false
}

// Remove drops the route with the given pattern.
func (r *Router) Remove(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeWhere(func(x *Route) bool { return x.Pattern == pattern }) > 0
}

// RemoveDoc drops every route served from podPath.
func (r *Router) RemoveDoc(podPath string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeWhere(func(x *Route) bool { return x.Kind == KindDoc && x.Meta.PodPath == podPath })
}

func (r *Router) removeWhere(pred func(*Route) bool) int {
	kept := r.routes[:0]
	removed := 0
	for _, route := range r.routes {
		if pred(route) {
			if route.IsConcrete() && r.concrete[route.Pattern] == route {
				delete(r.concrete, route.Pattern)
			}
			removed++
			continue
		}
		kept = append(kept, route)
	}
	for i := len(kept); i < len(r.routes); i++ {
		r.routes[i] = nil
	}
	r.routes = kept
	return removed
}

// Reconcile applies a document diff: routes of removed documents that are not
// re-added are dropped, and added documents replace whatever routes they had.
// The router is left unchanged when an added document fails.
func (r *Router) Reconcile(ctx context.Context, removed []DocRef, added []Document) error {
	type pending struct {
		podPath string
		paths   []LocalizedPath
	}
	additions := make([]pending, 0, len(added))
	readded := make(map[string]bool, len(added))
	for _, doc := range added {
		paths, err := doc.LocalizedPaths()
		if err != nil {
			return err
		}
		additions = append(additions, pending{podPath: doc.PodPath(), paths: paths})
		readded[doc.PodPath()] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restore := r.checkpoint()

	for _, ref := range removed {
		if readded[ref.PodPath] {
			continue
		}
		ref := ref
		r.removeWhere(func(x *Route) bool {
			return x.Kind == KindDoc && x.Meta.PodPath == ref.PodPath &&
				(ref.Locale == "" || x.Meta.Locale == ref.Locale)
		})
	}
	for _, a := range additions {
		podPath := a.podPath
		r.removeWhere(func(x *Route) bool { return x.Kind == KindDoc && x.Meta.PodPath == podPath })
		if err := r.addDoc(podPath, a.paths); err != nil {
			restore()
			r.logger.Warn(ctx, err, "Reconcile rejected", "pod_path", podPath)
			return err
		}
	}
	r.logger.Debug(ctx, "Reconciled routes", "removed", len(removed), "added", len(added), "routes", len(r.routes))
	return nil
}

// Routes returns every route in insertion order.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Route(nil), r.routes...)
}

// Concrete returns the concrete routes in insertion order.
func (r *Router) Concrete() []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Route, 0, len(r.concrete))
	for _, route := range r.routes {
		if route.IsConcrete() {
			out = append(out, route)
		}
	}
	return out
}

// Filter returns the routes of the given kind in insertion order.
func (r *Router) Filter(kind Kind) []*Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Route
	for _, route := range r.routes {
		if route.Kind == kind {
			out = append(out, route)
		}
	}
	return out
}

// DocPaths returns the concrete serving paths of podPath keyed by locale.
func (r *Router) DocPaths(podPath string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for _, route := range r.routes {
		if route.Kind == KindDoc && route.Meta.PodPath == podPath && route.IsConcrete() {
			out[route.Meta.Locale] = route.Pattern
		}
	}
	return out
}

// Len returns the number of routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Paths returns every route pattern sorted, for stable comparisons.
func (r *Router) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.Pattern
	}
	sort.Strings(out)
	return out
}
