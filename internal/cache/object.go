// Package cache implements the pod's cache hierarchy: raw file contents,
// named object caches, parsed document properties, the collection/document
// index and the routes cache, composed in PodCache.
package cache

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
)

// ObjectCacheOptions controls how a named object cache is reset and
// persisted.
type ObjectCacheOptions struct {
	// CanReset allows a global reset to clear the cache.
	CanReset bool
	// WriteToFile persists the cache with the pod cache.
	WriteToFile bool
	// SeparateFile writes the cache to objectcache.<name>.json instead of the
	// combined objectcache.json.
	SeparateFile bool
}

// DefaultObjectCacheOptions are used when a cache is created implicitly.
var DefaultObjectCacheOptions = ObjectCacheOptions{CanReset: true, WriteToFile: true}

// ObjectCache maps string keys to JSON-encodable values. It becomes dirty
// only when a write changes a stored value.
type ObjectCache struct {
	name    string
	options ObjectCacheOptions

	mu     sync.RWMutex
	values map[string]any
	dirty  bool
	// gen counts changes so a persisted snapshot can tell whether the cache
	// moved on while it was being written.
	gen uint64
}

// NewObjectCache creates an empty named object cache.
func NewObjectCache(name string, options ObjectCacheOptions) *ObjectCache {
	return &ObjectCache{
		name:    name,
		options: options,
		values:  make(map[string]any),
	}
}

// Name returns the cache name.
func (c *ObjectCache) Name() string { return c.name }

// Options returns the cache options.
func (c *ObjectCache) Options() ObjectCacheOptions { return c.options }

// Add stores value under key and reports whether the stored value changed.
// Values are compared by their JSON encoding, so a value read back from disk
// equals the value originally written.
func (c *ObjectCache) Add(key string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.values[key]; ok && sameJSON(old, value) {
		return false
	}
	c.values[key] = value
	c.touch()
	return true
}

// Get returns the value stored under key.
func (c *ObjectCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Remove deletes key and reports whether it was present.
func (c *ObjectCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		return false
	}
	delete(c.values, key)
	c.touch()
	return true
}

// Keys returns the stored keys, sorted.
func (c *ObjectCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (c *ObjectCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Reset removes every value.
func (c *ObjectCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) > 0 {
		c.touch()
	}
	c.values = make(map[string]any)
}

func (c *ObjectCache) touch() {
	c.dirty = true
	c.gen++
}

// Export returns a shallow copy of the stored values.
func (c *ObjectCache) Export() map[string]any {
	values, _ := c.snapshot()
	return values
}

// snapshot copies the stored values together with the change count they
// reflect.
func (c *ObjectCache) snapshot() (map[string]any, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out, c.gen
}

// Load replaces the stored values and marks the cache clean.
func (c *ObjectCache) Load(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any, len(values))
	for k, v := range values {
		c.values[k] = v
	}
	c.dirty = false
}

// IsDirty reports whether a value changed since the last MarkClean.
func (c *ObjectCache) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// MarkClean clears the dirty flag.
func (c *ObjectCache) MarkClean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
}

// markWritten clears the dirty flag if nothing changed since the snapshot
// taken at gen.
func (c *ObjectCache) markWritten(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.dirty = false
	}
}

func sameJSON(a, b any) bool {
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// ObjectCaches is the registry of named object caches.
type ObjectCaches struct {
	mu     sync.RWMutex
	caches map[string]*ObjectCache
}

// NewObjectCaches creates an empty registry.
func NewObjectCaches() *ObjectCaches {
	return &ObjectCaches{caches: make(map[string]*ObjectCache)}
}

// Create returns the cache called name, creating it with options if it does
// not exist yet. Options of an existing cache are updated so that a cache
// first seen on disk picks up its declared behavior.
func (o *ObjectCaches) Create(name string, options ObjectCacheOptions) *ObjectCache {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.caches[name]; ok {
		c.mu.Lock()
		c.options = options
		c.mu.Unlock()
		return c
	}
	c := NewObjectCache(name, options)
	o.caches[name] = c
	return c
}

// Get returns the cache called name, creating it with default options.
func (o *ObjectCaches) Get(name string) *ObjectCache {
	o.mu.RLock()
	c, ok := o.caches[name]
	o.mu.RUnlock()
	if ok {
		return c
	}
	return o.Create(name, DefaultObjectCacheOptions)
}

// Names returns the registered cache names, sorted.
func (o *ObjectCaches) Names() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.caches))
	for name := range o.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears every cache allowing it. With force, protected caches are
// cleared too.
func (o *ObjectCaches) Reset(force bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, c := range o.caches {
		if force || c.Options().CanReset {
			c.Reset()
		}
	}
}

// IsDirty reports whether any persisted cache is dirty.
func (o *ObjectCaches) IsDirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, c := range o.caches {
		if c.Options().WriteToFile && c.IsDirty() {
			return true
		}
	}
	return false
}

// written records the change count of a cache at the time it was exported.
type written struct {
	cache *ObjectCache
	gen   uint64
}

// exportCombined returns the persisted caches that share objectcache.json,
// along with the state each export reflects.
func (o *ObjectCaches) exportCombined() (map[string]map[string]any, []written) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]map[string]any)
	var marks []written
	for name, c := range o.caches {
		opts := c.Options()
		if opts.WriteToFile && !opts.SeparateFile {
			values, gen := c.snapshot()
			out[name] = values
			marks = append(marks, written{cache: c, gen: gen})
		}
	}
	return out, marks
}

// separate returns the persisted caches written to their own file.
func (o *ObjectCaches) separate() []*ObjectCache {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []*ObjectCache
	for _, c := range o.caches {
		opts := c.Options()
		if opts.WriteToFile && opts.SeparateFile {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
