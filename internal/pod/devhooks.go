package pod

import (
	"context"

	"github.com/conneroisu/grow/internal/cache"
	"github.com/conneroisu/grow/internal/catalog"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/render"
)

// Built-in extension names.
const (
	PodCacheExtension = "grow:podcache"
	RoutesExtension   = "grow:routes"
)

// FileChange is threaded through the dev_file_change hook chain.
type FileChange struct {
	PodPath string
	// Removed lists the documents dropped from the collection cache.
	Removed []cache.DocKey
	// Dependents are the files whose output depends on PodPath, itself
	// included.
	Dependents []string
	// Reloaded lists the documents other than PodPath that were dropped and
	// reloaded because their fields may come from PodPath.
	Reloaded []string
	// RoutesChanged is set when a serving path was added, moved or dropped.
	RoutesChanged bool
}

func fileChangeFrom(previous any, args []any) *FileChange {
	if fc, ok := previous.(*FileChange); ok && fc != nil {
		return fc
	}
	fc := &FileChange{}
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			fc.PodPath = podpath.Clean(s)
		}
	}
	return fc
}

// HandleFileChange runs the dev_file_change chain for podPath.
func (p *Pod) HandleFileChange(ctx context.Context, podPath string) (*FileChange, error) {
	podPath = podpath.Clean(podPath)
	result, err := p.hooks.Trigger(ctx, hooks.DevFileChange, nil, podPath)
	fc, ok := result.(*FileChange)
	if !ok || fc == nil {
		fc = &FileChange{PodPath: podPath}
	}
	return fc, err
}

func newPodCacheExtension(p *Pod) hooks.Extension {
	return hooks.NewExtension(PodCacheExtension, map[hooks.Key]hooks.Hook{
		hooks.DevFileChange: hooks.Func(func(ctx context.Context, previous any, args ...any) (any, error) {
			fc := fileChangeFrom(previous, args)
			p.invalidate(ctx, fc)
			return fc, nil
		}),
	})
}

// invalidate clears everything derived from the changed file and reloads
// the mutated document so the next request sees it.
func (p *Pod) invalidate(ctx context.Context, fc *FileChange) {
	podPath := fc.PodPath
	fc.Dependents = p.cache.Deps.Dependents(podPath)
	fc.Removed = p.cache.Invalidate(podPath)
	p.cache.Objects.Get(fingerprintsCache).Remove(podPath)
	if podPath != PodspecPath {
		fc.Reloaded = p.dependentDocs(podPath, fc.Dependents)
		for _, dep := range fc.Reloaded {
			fc.Removed = append(fc.Removed, p.cache.Invalidate(dep)...)
		}
	}

	switch {
	case podPath == PodspecPath:
		p.resetPodspec()
		p.cache.Collections.Reset()
		p.cache.Documents.Reset()
		p.catalogs.Reset()
		p.pool.Reset()
	case podpath.HasPrefix(podPath, render.ViewsDir):
		p.pool.Reset()
	case podpath.HasPrefix(podPath, catalog.Dir):
		p.catalogs.Reset()
	case podpath.IsContent(podPath) && IsDocumentFile(podPath) && p.store.Exists(podPath):
		root := podpath.RootPodPath(podPath)
		if p.store.Exists(root) {
			if _, err := p.GetDoc(root, ""); err != nil {
				p.logger.Warn(ctx, err, "Reload failed", "pod_path", root)
			}
		}
	}
	for _, dep := range fc.Reloaded {
		if _, err := p.GetDoc(dep, ""); err != nil {
			p.logger.Warn(ctx, err, "Reload failed", "pod_path", dep)
		}
	}
	p.logger.Debug(ctx, "Invalidated", "pod_path", podPath,
		"documents", len(fc.Removed), "dependents", len(fc.Dependents))
}

// dependentDocs returns the routable documents among dependents, other
// than the changed file itself.
func (p *Pod) dependentDocs(podPath string, dependents []string) []string {
	self := podpath.RootPodPath(podPath)
	var out []string
	for _, dep := range dependents {
		if !podpath.IsContent(dep) || !IsDocumentFile(dep) {
			continue
		}
		root := podpath.RootPodPath(dep)
		if root == self || !p.store.Exists(root) {
			continue
		}
		if _, ok := p.collectionDir(root); !ok {
			continue
		}
		out = appendUnique(out, root)
	}
	return out
}

func newRoutesExtension(p *Pod) hooks.Extension {
	return hooks.NewExtension(RoutesExtension, map[hooks.Key]hooks.Hook{
		hooks.DevFileChange: hooks.Func(func(ctx context.Context, previous any, args ...any) (any, error) {
			fc := fileChangeFrom(previous, args)
			changed, err := p.reconcileChange(ctx, fc.PodPath)
			if err != nil {
				return fc, err
			}
			fc.RoutesChanged = fc.RoutesChanged || changed
			if len(fc.Reloaded) > 0 {
				// Serving paths may be read from the changed file.
				changed, err = p.reconcileDocs(ctx, fc.Reloaded)
				if err != nil {
					return fc, err
				}
				fc.RoutesChanged = fc.RoutesChanged || changed
			}
			return fc, nil
		}),
	})
}

// reconcileChange diffs the router against the changed file: the podspec
// and static files rebuild every route, a blueprint or routes override
// reconciles its whole collection, and a document reconciles itself.
func (p *Pod) reconcileChange(ctx context.Context, podPath string) (bool, error) {
	switch {
	case podPath == PodspecPath || p.isStaticFile(ctx, podPath):
		before := p.Router().Paths()
		err := p.LoadRoutes(ctx)
		return !equalStrings(before, p.Router().Paths()), err

	case podpath.IsBlueprint(podPath) || podpath.Base(podPath) == podpath.RoutesName:
		dir := podpath.Dir(podPath)
		targets := p.routedDocsUnder(dir)
		if c, err := p.GetCollection(dir); err == nil {
			paths, err := c.ListDocPaths()
			if err != nil {
				return false, err
			}
			targets = appendUnique(targets, paths...)
		}
		return p.reconcileDocs(ctx, targets)

	case podpath.IsContent(podPath) && IsDocumentFile(podPath):
		root := podpath.RootPodPath(podPath)
		if _, ok := p.collectionDir(root); !ok {
			return false, nil
		}
		return p.reconcileDocs(ctx, []string{root})
	}
	return false, nil
}

func (p *Pod) isStaticFile(ctx context.Context, podPath string) bool {
	configs, err := p.StaticConfigs(ctx)
	if err != nil {
		return false
	}
	for _, cfg := range configs {
		if podpath.HasPrefix(podPath, cfg.StaticDir) {
			return true
		}
		if cfg.Localization != nil {
			for _, locale := range p.podspecLocales() {
				if podpath.HasPrefix(podPath, replaceLocale(cfg.Localization.StaticDir, locale)) {
					return true
				}
			}
		}
	}
	return false
}

func (p *Pod) podspecLocales() []string {
	spec, err := p.Podspec()
	if err != nil {
		return nil
	}
	return spec.Locales()
}

func appendUnique(list []string, values ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			list = append(list, v)
		}
	}
	return list
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
