// Package depgraph tracks which pod files reference which other pod files so
// that a mutation can invalidate everything built from the changed file.
package depgraph

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/conneroisu/grow/internal/podpath"
)

// Graph is a bidirectional source -> references map.
type Graph struct {
	mu      sync.RWMutex
	refs    map[string]map[string]struct{} // source -> references
	sources map[string]map[string]struct{} // reference -> sources
	dirty   bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		refs:    make(map[string]map[string]struct{}),
		sources: make(map[string]map[string]struct{}),
	}
}

// Add records that source references ref.
func (g *Graph) Add(source, ref string) {
	source, ref = podpath.Clean(source), podpath.Clean(ref)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.link(source, ref) {
		g.dirty = true
	}
}

// AddAll replaces the references of source with refs.
func (g *Graph) AddAll(source string, refs []string) {
	source = podpath.Clean(source)

	g.mu.Lock()
	defer g.mu.Unlock()

	next := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		next[podpath.Clean(ref)] = struct{}{}
	}

	changed := false
	for old := range g.refs[source] {
		if _, keep := next[old]; !keep {
			g.unlink(source, old)
			changed = true
		}
	}
	for ref := range next {
		if g.link(source, ref) {
			changed = true
		}
	}
	if changed {
		g.dirty = true
	}
}

// Remove drops source and every edge leaving it.
func (g *Graph) Remove(source string) {
	source = podpath.Clean(source)

	g.mu.Lock()
	defer g.mu.Unlock()

	for ref := range g.refs[source] {
		g.unlink(source, ref)
		g.dirty = true
	}
	delete(g.refs, source)
}

// Dependents returns ref itself, every source referencing ref, and every
// source referencing the directory containing ref. The result is sorted.
func (g *Graph) Dependents(ref string) []string {
	ref = podpath.Clean(ref)

	g.mu.RLock()
	defer g.mu.RUnlock()

	set := map[string]struct{}{ref: {}}
	for src := range g.sources[ref] {
		set[src] = struct{}{}
	}
	for src := range g.sources[podpath.Dir(ref)] {
		set[src] = struct{}{}
	}
	return sortedKeys(set)
}

// Dependencies returns the sorted references of source.
func (g *Graph) Dependencies(source string) []string {
	source = podpath.Clean(source)

	g.mu.RLock()
	defer g.mu.RUnlock()

	return sortedKeys(g.refs[source])
}

// Export returns a copy of the source -> sorted references map.
func (g *Graph) Export() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string][]string, len(g.refs))
	for src, refs := range g.refs {
		out[src] = sortedKeys(refs)
	}
	return out
}

// MarshalJSON encodes the graph as source -> references. Map keys are
// emitted sorted by encoding/json.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Export())
}

// Load replaces the graph with data previously produced by Export.
func (g *Graph) Load(data map[string][]string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refs = make(map[string]map[string]struct{}, len(data))
	g.sources = make(map[string]map[string]struct{})
	for src, refs := range data {
		for _, ref := range refs {
			g.link(podpath.Clean(src), podpath.Clean(ref))
		}
	}
	g.dirty = false
}

// UnmarshalJSON loads a graph encoded by MarshalJSON.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var data map[string][]string
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	g.Load(data)
	return nil
}

// Reset empties the graph.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	dirty := len(g.refs) > 0
	g.refs = make(map[string]map[string]struct{})
	g.sources = make(map[string]map[string]struct{})
	g.dirty = g.dirty || dirty
}

// IsDirty reports whether the graph changed since the last MarkClean.
func (g *Graph) IsDirty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dirty
}

// MarkClean clears the dirty flag after a successful persist.
func (g *Graph) MarkClean() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = false
}

// DetectCycles returns the reference cycles reachable in the graph. Cycles
// are legal between documents but are surfaced for diagnostics.
func (g *Graph) DetectCycles() [][]string {
	graph := g.Export()
	keys := make([]string, 0, len(graph))
	for k := range graph {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(node string, path []string)
	visit = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)
		for _, next := range graph[node] {
			if !visited[next] {
				visit(next, path)
			} else if onStack[next] {
				for i, p := range path {
					if p == next {
						cycle := append(append([]string{}, path[i:]...), next)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		onStack[node] = false
	}

	for _, k := range keys {
		if !visited[k] {
			visit(k, nil)
		}
	}
	return cycles
}

func (g *Graph) link(source, ref string) bool {
	refs, ok := g.refs[source]
	if !ok {
		refs = make(map[string]struct{})
		g.refs[source] = refs
	}
	if _, exists := refs[ref]; exists {
		return false
	}
	refs[ref] = struct{}{}

	srcs, ok := g.sources[ref]
	if !ok {
		srcs = make(map[string]struct{})
		g.sources[ref] = srcs
	}
	srcs[source] = struct{}{}
	return true
}

func (g *Graph) unlink(source, ref string) {
	delete(g.refs[source], ref)
	if srcs, ok := g.sources[ref]; ok {
		delete(srcs, source)
		if len(srcs) == 0 {
			delete(g.sources, ref)
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
