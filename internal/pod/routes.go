package pod

import (
	"context"

	"github.com/conneroisu/grow/internal/cache"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/router"
)

// LoadRoutes rebuilds the router from every collection, static directory and
// the sitemap, then runs the router_add hook chain and records the result in
// the routes cache. Document load and duplicate path failures are returned
// together as a BulkErrors; the router still holds every route that could be
// added.
func (p *Pod) LoadRoutes(ctx context.Context) error {
	perf := logging.StartOperation(p.logger, "load_routes")
	r := router.New(p.logger)
	bulk := errors.NewBulkErrors()

	collections, err := p.ListCollections()
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	for _, c := range collections {
		paths, err := c.ListDocPaths()
		if err != nil {
			perf.EndWithError(ctx, err)
			return err
		}
		for _, podPath := range paths {
			doc, err := p.GetDoc(podPath, "")
			if err != nil {
				bulk.Add(podPath, "", err, errors.Traceback(err))
				continue
			}
			if doc.Draft() {
				continue
			}
			if err := r.AddDoc(doc); err != nil {
				bulk.Add(podPath, "", err, errors.Traceback(err))
			}
		}
	}

	configs, err := p.StaticConfigs(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	for _, cfg := range configs {
		files, err := p.staticFiles(cfg)
		if err != nil {
			bulk.Add(cfg.StaticDir, "", err, errors.Traceback(err))
			continue
		}
		if err := r.AddStatic(cfg, files); err != nil {
			bulk.Add(cfg.StaticDir, "", err, errors.Traceback(err))
		}
	}

	spec, err := p.Podspec()
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	if spec.Sitemap.Enabled {
		if err := r.Add(spec.Sitemap.Path, router.KindSitemap, router.Meta{PodPath: PodspecPath}); err != nil {
			bulk.Add(PodspecPath, "", err, errors.Traceback(err))
		}
	}

	if _, err := p.hooks.Trigger(ctx, hooks.RouterAdd, r, p); err != nil {
		p.errs.Handle(ctx, err, "router_add hook failed")
	}

	p.routerMu.Lock()
	p.router = r
	p.routerMu.Unlock()
	p.recordRoutes()

	perf.End(ctx, "routes", r.Len())
	return bulk.ErrOrNil()
}

func routeRecord(route *router.Route) cache.RouteRecord {
	return cache.RouteRecord{
		Value: cache.RouteValue{
			Kind:    string(route.Kind),
			PodPath: route.Meta.PodPath,
			Locale:  route.Meta.Locale,
		},
		Options: route.Meta.Options,
	}
}

// recordRoutes replaces this env's routes cache with the router contents.
func (p *Pod) recordRoutes() {
	p.cache.Routes.ResetEnv(p.env)
	for _, route := range p.Router().Routes() {
		p.cache.Routes.Add(p.env, route.Pattern, routeRecord(route), route.IsConcrete())
	}
}

// recordDocRoutes refreshes the routes cache entries of one document.
func (p *Pod) recordDocRoutes(podPath string) {
	p.cache.Routes.RemoveByPodPath(p.env, podPath)
	for _, route := range p.Router().Filter(router.KindDoc) {
		if route.Meta.PodPath == podPath {
			p.cache.Routes.Add(p.env, route.Pattern, routeRecord(route), route.IsConcrete())
		}
	}
}

// reconcileDocs applies a document diff to the router and the routes cache.
// Missing and draft documents are only removed.
func (p *Pod) reconcileDocs(ctx context.Context, podPaths []string) (bool, error) {
	r := p.Router()
	before := make(map[string]map[string]string, len(podPaths))
	removed := make([]router.DocRef, 0, len(podPaths))
	var added []router.Document
	for _, podPath := range podPaths {
		before[podPath] = r.DocPaths(podPath)
		removed = append(removed, router.DocRef{PodPath: podPath})
		if !p.store.Exists(podPath) {
			continue
		}
		doc, err := p.GetDoc(podPath, "")
		if err != nil {
			return false, err
		}
		if !doc.Draft() {
			added = append(added, doc)
		}
	}
	if err := r.Reconcile(ctx, removed, added); err != nil {
		return false, err
	}

	changed := false
	for _, podPath := range podPaths {
		if !samePaths(before[podPath], r.DocPaths(podPath)) {
			changed = true
		}
		p.recordDocRoutes(podPath)
	}
	return changed, nil
}

func samePaths(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// routedDocsUnder returns the pod paths of routed documents under dir.
func (p *Pod) routedDocsUnder(dir string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, route := range p.Router().Filter(router.KindDoc) {
		podPath := route.Meta.PodPath
		if podpath.HasPrefix(podPath, dir) && !seen[podPath] {
			seen[podPath] = true
			out = append(out, podPath)
		}
	}
	return out
}
