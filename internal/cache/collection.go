package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/grow/internal/podpath"
)

type collectionEntry[C, D any] struct {
	collection C
	loaded     bool
	docs       map[DocKey]D
}

// CollectionCache is the two-level index collection path -> documents keyed
// by (pod path, locale). Collections and documents are stored as constructed
// so every lookup of the same key returns the same instance.
type CollectionCache[C, D any] struct {
	mu          sync.RWMutex
	collections map[string]*collectionEntry[C, D]
}

// NewCollectionCache creates an empty collection cache.
func NewCollectionCache[C, D any]() *CollectionCache[C, D] {
	return &CollectionCache[C, D]{collections: make(map[string]*collectionEntry[C, D])}
}

func (c *CollectionCache[C, D]) entry(collectionPath string) *collectionEntry[C, D] {
	e, ok := c.collections[collectionPath]
	if !ok {
		e = &collectionEntry[C, D]{docs: make(map[DocKey]D)}
		c.collections[collectionPath] = e
	}
	return e
}

// AddCollection stores the collection at collectionPath.
func (c *CollectionCache[C, D]) AddCollection(collectionPath string, collection C) {
	collectionPath = podpath.Clean(collectionPath)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(collectionPath)
	e.collection = collection
	e.loaded = true
}

// GetCollection returns the collection at collectionPath.
func (c *CollectionCache[C, D]) GetCollection(collectionPath string) (C, bool) {
	collectionPath = podpath.Clean(collectionPath)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.collections[collectionPath]; ok && e.loaded {
		return e.collection, true
	}
	var zero C
	return zero, false
}

// AddDocument stores doc under (podPath, locale) within its collection.
func (c *CollectionCache[C, D]) AddDocument(collectionPath, podPath, locale string, doc D) {
	collectionPath = podpath.Clean(collectionPath)
	key := DocKey{PodPath: podpath.Clean(podPath), Locale: locale}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(collectionPath).docs[key] = doc
}

// GetDocument returns the document stored under (podPath, locale).
func (c *CollectionCache[C, D]) GetDocument(collectionPath, podPath, locale string) (D, bool) {
	collectionPath = podpath.Clean(collectionPath)
	key := DocKey{PodPath: podpath.Clean(podPath), Locale: locale}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.collections[collectionPath]; ok {
		if doc, ok := e.docs[key]; ok {
			return doc, true
		}
	}
	var zero D
	return zero, false
}

// RemoveDocument drops every locale of the document rooted at podPath and
// returns the removed keys.
func (c *CollectionCache[C, D]) RemoveDocument(collectionPath, podPath string) []DocKey {
	collectionPath = podpath.Clean(collectionPath)
	root := podpath.RootPodPath(podpath.Clean(podPath))

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.collections[collectionPath]
	if !ok {
		return nil
	}
	var removed []DocKey
	for key := range e.docs {
		if key.PodPath == root {
			delete(e.docs, key)
			removed = append(removed, key)
		}
	}
	sortKeys(removed)
	return removed
}

// RemoveCollection drops the collection and all of its documents, returning
// the removed document keys.
func (c *CollectionCache[C, D]) RemoveCollection(collectionPath string) []DocKey {
	collectionPath = podpath.Clean(collectionPath)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.collections[collectionPath]
	if !ok {
		return nil
	}
	delete(c.collections, collectionPath)
	removed := make([]DocKey, 0, len(e.docs))
	for key := range e.docs {
		removed = append(removed, key)
	}
	sortKeys(removed)
	return removed
}

// RemoveByPath invalidates whatever podPath contributes to: a blueprint or
// routes override drops its whole collection, any other file drops the
// document in every locale from the nearest cached collection containing it.
func (c *CollectionCache[C, D]) RemoveByPath(podPath string) []DocKey {
	podPath = podpath.Clean(podPath)
	if podpath.IsBlueprint(podPath) || podpath.Base(podPath) == podpath.RoutesName {
		return c.RemoveCollection(podpath.Dir(podPath))
	}

	c.mu.RLock()
	owner := ""
	for collectionPath := range c.collections {
		if podpath.HasPrefix(podPath, collectionPath) && len(collectionPath) > len(owner) {
			owner = collectionPath
		}
	}
	c.mu.RUnlock()

	if owner == "" {
		return nil
	}
	return c.RemoveDocument(owner, podPath)
}

// Documents returns the documents cached for collectionPath ordered by key.
func (c *CollectionCache[C, D]) Documents(collectionPath string) []D {
	collectionPath = podpath.Clean(collectionPath)

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.collections[collectionPath]
	if !ok {
		return nil
	}
	keys := make([]DocKey, 0, len(e.docs))
	for key := range e.docs {
		keys = append(keys, key)
	}
	sortKeys(keys)
	out := make([]D, len(keys))
	for i, key := range keys {
		out[i] = e.docs[key]
	}
	return out
}

// CollectionPaths returns the cached collection paths, sorted.
func (c *CollectionCache[C, D]) CollectionPaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.collections))
	for p := range c.collections {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reset drops everything.
func (c *CollectionCache[C, D]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = make(map[string]*collectionEntry[C, D])
}

func sortKeys(keys []DocKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PodPath != keys[j].PodPath {
			return strings.Compare(keys[i].PodPath, keys[j].PodPath) < 0
		}
		return keys[i].Locale < keys[j].Locale
	})
}
