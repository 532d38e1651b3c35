package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/conneroisu/grow/internal/depgraph"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podfs"
	"github.com/conneroisu/grow/internal/podpath"
)

// Persisted cache files under the control directory.
const (
	ObjectCacheFile  = podpath.ControlDir + "/objectcache.json"
	RoutesCacheFile  = podpath.ControlDir + "/routescache.json"
	DependenciesFile = podpath.ControlDir + "/dependencies.json"

	objectCachePrefix = "objectcache."
	objectCacheSuffix = ".json"
)

// SeparateObjectCacheFile returns the file a separate object cache persists to.
func SeparateObjectCacheFile(name string) string {
	return podpath.ControlDir + "/" + objectCachePrefix + name + objectCacheSuffix
}

// Options configures a PodCache.
type Options struct {
	FileCacheSize int
}

// PodCache composes the pod's caches and the dependency graph and persists
// them atomically under the control directory.
type PodCache[C, D any] struct {
	Files       *FileCache
	Objects     *ObjectCaches
	Documents   *DocumentCache
	Collections *CollectionCache[C, D]
	Routes      *RoutesCache
	Deps        *depgraph.Graph

	mu     sync.Mutex
	store  *podfs.FS
	logger logging.Logger
}

// New creates an empty pod cache backed by store.
func New[C, D any](store *podfs.FS, logger logging.Logger, opts Options) (*PodCache[C, D], error) {
	files, err := NewFileCache(store, opts.FileCacheSize)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "create file cache", err)
	}
	return &PodCache[C, D]{
		Files:       files,
		Objects:     NewObjectCaches(),
		Documents:   NewDocumentCache(),
		Collections: NewCollectionCache[C, D](),
		Routes:      NewRoutesCache(),
		Deps:        depgraph.New(),
		store:       store,
		logger:      logger.WithComponent("podcache"),
	}, nil
}

// IsDirty reports whether any persisted cache or the dependency graph has
// changed since the last Write or Load.
func (p *PodCache[C, D]) IsDirty() bool {
	return p.Objects.IsDirty() || p.Routes.IsDirty() || p.Deps.IsDirty()
}

// Invalidate drops everything derived from podPath: its raw contents, its
// parsed properties and its cached documents or collection. It returns the
// document keys removed from the collection cache.
func (p *PodCache[C, D]) Invalidate(podPath string) []DocKey {
	podPath = podpath.Clean(podPath)
	p.Files.Remove(podPath)
	if root := podpath.RootPodPath(podPath); root != podPath {
		p.Files.Remove(root)
	}
	p.Documents.Remove(podPath)
	return p.Collections.RemoveByPath(podPath)
}

// Reset clears the in-memory caches. Protected object caches survive unless
// force is set.
func (p *PodCache[C, D]) Reset(force bool) {
	p.Files.Reset()
	p.Documents.Reset()
	p.Collections.Reset()
	p.Objects.Reset(force)
	p.Routes.Reset()
	p.Deps.Reset()
}

// Write persists the dirty caches. Each file is written atomically.
func (p *PodCache[C, D]) Write(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Objects.IsDirty() {
		combined, marks := p.Objects.exportCombined()
		if err := p.writeJSON(ObjectCacheFile, combined); err != nil {
			return err
		}
		for _, m := range marks {
			m.cache.markWritten(m.gen)
		}
		for _, c := range p.Objects.separate() {
			if !c.IsDirty() {
				continue
			}
			values, gen := c.snapshot()
			if err := p.writeJSON(SeparateObjectCacheFile(c.Name()), values); err != nil {
				return err
			}
			c.markWritten(gen)
		}
		p.logger.Debug(ctx, "Wrote object caches", "caches", len(p.Objects.Names()))
	}

	if p.Routes.IsDirty() {
		if err := p.writeJSON(RoutesCacheFile, p.Routes); err != nil {
			return err
		}
		p.Routes.MarkClean()
		p.logger.Debug(ctx, "Wrote routes cache")
	}

	if p.Deps.IsDirty() {
		if err := p.writeJSON(DependenciesFile, p.Deps); err != nil {
			return err
		}
		p.Deps.MarkClean()
		p.logger.Debug(ctx, "Wrote dependency graph")
	}
	return nil
}

func (p *PodCache[C, D]) writeJSON(podPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeCacheWrite, "encode "+podPath, err)
	}
	return p.store.WriteFile(podPath, data)
}

// Load reads persisted caches. Missing files are skipped; unreadable or
// corrupt files are logged and ignored so a bad cache never blocks a build.
func (p *PodCache[C, D]) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if data, ok := p.read(ctx, ObjectCacheFile); ok {
		var combined map[string]map[string]any
		if err := json.Unmarshal(data, &combined); err != nil {
			p.logger.Warn(ctx, err, "Ignoring corrupt object cache", "path", ObjectCacheFile)
		} else {
			for name, values := range combined {
				p.Objects.Get(name).Load(values)
			}
		}
	}

	entries, err := p.store.ListDir(podpath.ControlDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		base := podpath.Base(entry)
		if entry == ObjectCacheFile || !strings.HasPrefix(base, objectCachePrefix) || !strings.HasSuffix(base, objectCacheSuffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(base, objectCachePrefix), objectCacheSuffix)
		data, ok := p.read(ctx, entry)
		if !ok {
			continue
		}
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			p.logger.Warn(ctx, err, "Ignoring corrupt object cache", "path", entry)
			continue
		}
		p.Objects.Create(name, ObjectCacheOptions{CanReset: true, WriteToFile: true, SeparateFile: true}).Load(values)
	}

	if data, ok := p.read(ctx, RoutesCacheFile); ok {
		loaded, err := p.Routes.Load(data)
		switch {
		case err != nil:
			p.logger.Warn(ctx, err, "Ignoring corrupt routes cache", "path", RoutesCacheFile)
		case !loaded:
			p.logger.Info(ctx, "Discarding routes cache from another version", "path", RoutesCacheFile)
		}
	}

	if data, ok := p.read(ctx, DependenciesFile); ok {
		if err := p.Deps.UnmarshalJSON(data); err != nil {
			p.logger.Warn(ctx, err, "Ignoring corrupt dependency graph", "path", DependenciesFile)
		}
	}
	return nil
}

func (p *PodCache[C, D]) read(ctx context.Context, podPath string) ([]byte, bool) {
	if !p.store.Exists(podPath) {
		return nil, false
	}
	data, err := p.store.ReadFile(podPath)
	if err != nil {
		p.logger.Warn(ctx, err, "Unable to read cache file", "path", podPath)
		return nil, false
	}
	return data, true
}
