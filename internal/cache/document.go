package cache

import (
	"sync"

	"github.com/conneroisu/grow/internal/podpath"
)

// DocKey identifies a document in a given locale. An empty locale is the
// document's default locale.
type DocKey struct {
	PodPath string
	Locale  string
}

func (k DocKey) String() string {
	if k.Locale == "" {
		return k.PodPath
	}
	return k.PodPath + "@" + k.Locale
}

// DocumentCache holds parsed per-document properties (front matter, resolved
// locales) keyed by root pod path and locale. It is not persisted.
type DocumentCache struct {
	mu    sync.RWMutex
	props map[DocKey]map[string]any
}

// NewDocumentCache creates an empty document cache.
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{props: make(map[DocKey]map[string]any)}
}

// Add stores a property for (podPath, locale).
func (c *DocumentCache) Add(podPath, locale, prop string, value any) {
	key := DocKey{PodPath: podpath.RootPodPath(podpath.Clean(podPath)), Locale: locale}

	c.mu.Lock()
	defer c.mu.Unlock()
	props, ok := c.props[key]
	if !ok {
		props = make(map[string]any)
		c.props[key] = props
	}
	props[prop] = value
}

// Get returns a property for (podPath, locale).
func (c *DocumentCache) Get(podPath, locale, prop string) (any, bool) {
	key := DocKey{PodPath: podpath.RootPodPath(podpath.Clean(podPath)), Locale: locale}

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[key][prop]
	return v, ok
}

// Remove drops every property of the document at podPath in every locale.
// A locale variant path invalidates its root document too.
func (c *DocumentCache) Remove(podPath string) {
	root := podpath.RootPodPath(podpath.Clean(podPath))

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.props {
		if key.PodPath == root {
			delete(c.props, key)
		}
	}
}

// Reset drops everything.
func (c *DocumentCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props = make(map[DocKey]map[string]any)
}

// Len returns the number of cached (pod path, locale) entries.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.props)
}
