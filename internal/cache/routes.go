package cache

import (
	"encoding/json"
	"sort"
	"sync"
)

// RoutesCacheVersion is bumped when the persisted layout changes. A cache
// file with another version is discarded on load.
const RoutesCacheVersion = 1

// RouteValue is what a cached path resolves to.
type RouteValue struct {
	Kind    string `json:"kind"`
	PodPath string `json:"pod_path"`
	Locale  string `json:"locale,omitempty"`
}

// RouteRecord is a cached route with its options.
type RouteRecord struct {
	Value   RouteValue     `json:"value"`
	Options map[string]any `json:"options,omitempty"`
}

type routesEnv struct {
	Concrete map[string]RouteRecord `json:"concrete"`
	Dynamic  map[string]RouteRecord `json:"dynamic"`
}

func newRoutesEnv() *routesEnv {
	return &routesEnv{
		Concrete: make(map[string]RouteRecord),
		Dynamic:  make(map[string]RouteRecord),
	}
}

type routesFile struct {
	Version int                   `json:"version"`
	Envs    map[string]*routesEnv `json:"envs"`
}

// RoutesCache maps env -> path -> route record, split into concrete and
// dynamic (parameterized) paths.
type RoutesCache struct {
	mu    sync.RWMutex
	envs  map[string]*routesEnv
	dirty bool
}

// NewRoutesCache creates an empty routes cache.
func NewRoutesCache() *RoutesCache {
	return &RoutesCache{envs: make(map[string]*routesEnv)}
}

func (c *RoutesCache) env(env string) *routesEnv {
	e, ok := c.envs[env]
	if !ok {
		e = newRoutesEnv()
		c.envs[env] = e
	}
	return e
}

// Add stores rec for path in env and reports whether anything changed.
func (c *RoutesCache) Add(env, path string, rec RouteRecord, concrete bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.env(env)
	target, other := e.Dynamic, e.Concrete
	if concrete {
		target, other = e.Concrete, e.Dynamic
	}
	_, movedRegion := other[path]
	if old, ok := target[path]; ok && !movedRegion && sameJSON(old, rec) {
		return false
	}
	delete(other, path)
	target[path] = rec
	c.dirty = true
	return true
}

// Get returns the record for path in env and whether the path is concrete.
func (c *RoutesCache) Get(env, path string) (RouteRecord, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.envs[env]
	if !ok {
		return RouteRecord{}, false, false
	}
	if rec, ok := e.Concrete[path]; ok {
		return rec, true, true
	}
	rec, ok := e.Dynamic[path]
	return rec, ok, false
}

// Remove drops path from env.
func (c *RoutesCache) Remove(env, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.envs[env]
	if !ok {
		return
	}
	if _, ok := e.Concrete[path]; ok {
		delete(e.Concrete, path)
		c.dirty = true
	}
	if _, ok := e.Dynamic[path]; ok {
		delete(e.Dynamic, path)
		c.dirty = true
	}
}

// RemoveByPodPath drops every path of env served from podPath.
func (c *RoutesCache) RemoveByPodPath(env, podPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.envs[env]
	if !ok {
		return
	}
	for _, region := range []map[string]RouteRecord{e.Concrete, e.Dynamic} {
		for path, rec := range region {
			if rec.Value.PodPath == podPath {
				delete(region, path)
				c.dirty = true
			}
		}
	}
}

// Paths returns the cached concrete and dynamic paths of env, sorted.
func (c *RoutesCache) Paths(env string) (concrete, dynamic []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.envs[env]
	if !ok {
		return nil, nil
	}
	for p := range e.Concrete {
		concrete = append(concrete, p)
	}
	for p := range e.Dynamic {
		dynamic = append(dynamic, p)
	}
	sort.Strings(concrete)
	sort.Strings(dynamic)
	return concrete, dynamic
}

// ResetEnv drops every route of env.
func (c *RoutesCache) ResetEnv(env string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.envs[env]; ok && len(e.Concrete)+len(e.Dynamic) > 0 {
		c.dirty = true
	}
	delete(c.envs, env)
}

// Reset drops everything.
func (c *RoutesCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.envs) > 0 {
		c.dirty = true
	}
	c.envs = make(map[string]*routesEnv)
}

// MarshalJSON encodes the cache with its schema version.
func (c *RoutesCache) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(routesFile{Version: RoutesCacheVersion, Envs: c.envs})
}

// Load replaces the cache with data produced by MarshalJSON. Data written
// under another schema version is ignored and reported as not loaded.
func (c *RoutesCache) Load(data []byte) (bool, error) {
	var file routesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return false, err
	}
	if file.Version != RoutesCacheVersion {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = make(map[string]*routesEnv, len(file.Envs))
	for name, e := range file.Envs {
		if e == nil {
			continue
		}
		loaded := newRoutesEnv()
		for p, rec := range e.Concrete {
			loaded.Concrete[p] = rec
		}
		for p, rec := range e.Dynamic {
			loaded.Dynamic[p] = rec
		}
		c.envs[name] = loaded
	}
	c.dirty = false
	return true, nil
}

// IsDirty reports whether the cache changed since the last MarkClean.
func (c *RoutesCache) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// MarkClean clears the dirty flag.
func (c *RoutesCache) MarkClean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}
