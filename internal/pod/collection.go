package pod

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/untag"
)

// RouteOverride is a per-document entry of a collection's _routes.yaml.
type RouteOverride struct {
	Path         string         `mapstructure:"path"`
	Localization map[string]any `mapstructure:"localization"`
	View         string         `mapstructure:"view"`
}

type routesFile struct {
	PodPaths map[string]RouteOverride `mapstructure:"pod_paths"`
}

// Collection is a content directory configured by a blueprint.
type Collection struct {
	pod    *Pod
	path   string
	fields map[string]any
	loc    localization
	routes map[string]RouteOverride
}

// CollectionPath returns the content directory of a collection name such as
// "pages" or "/content/pages".
func CollectionPath(name string) string {
	name = podpath.Clean(name)
	if podpath.HasPrefix(name, podpath.ContentRoot) {
		return name
	}
	return podpath.Join(podpath.ContentRoot, name)
}

// GetCollection returns the collection at collectionPath.
func (p *Pod) GetCollection(collectionPath string) (*Collection, error) {
	collectionPath = CollectionPath(collectionPath)
	if c, ok := p.cache.Collections.GetCollection(collectionPath); ok {
		return c, nil
	}

	blueprint := podpath.Join(collectionPath, podpath.BlueprintName)
	if !p.store.Exists(blueprint) {
		return nil, &errors.CollectionNotFoundError{Path: collectionPath}
	}
	c, err := p.loadCollection(collectionPath)
	if err != nil {
		return nil, err
	}
	p.cache.Collections.AddCollection(collectionPath, c)
	return c, nil
}

func (p *Pod) loadCollection(collectionPath string) (*Collection, error) {
	blueprint := podpath.Join(collectionPath, podpath.BlueprintName)
	data, err := p.ReadFile(blueprint)
	if err != nil {
		return nil, err
	}
	v, err := p.newTagLoader(blueprint).decodeYAML(data)
	if err != nil {
		return nil, errors.NewFormatError(blueprint, 0, "invalid blueprint", err)
	}
	raw, err := cast.ToStringMapE(v)
	if v != nil && err != nil {
		return nil, errors.NewFormatError(blueprint, 0, "blueprint must be a mapping", err)
	}

	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	c := &Collection{pod: p, path: collectionPath, routes: map[string]RouteOverride{}}
	params := untag.Params{
		"env":    untag.RegexResolver{Value: p.env},
		"locale": untag.NewLocaleGroupResolver(spec.loc.groupSource()),
	}
	c.fields = untag.Untag(raw, "", params)
	if c.fields == nil {
		c.fields = map[string]any{}
	}
	c.loc = readLocalization(c.fields, "$")

	routesPath := podpath.Join(collectionPath, podpath.RoutesName)
	if p.store.Exists(routesPath) {
		if err := c.loadRoutes(routesPath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection) loadRoutes(routesPath string) error {
	data, err := c.pod.ReadFile(routesPath)
	if err != nil {
		return err
	}
	v, err := c.pod.newTagLoader(routesPath).decodeYAML(data)
	if err != nil {
		return errors.NewFormatError(routesPath, 0, "invalid routes file", err)
	}
	var rf routesFile
	if err := decode(v, &rf); err != nil {
		return errors.NewFormatError(routesPath, 0, "invalid routes file", err)
	}
	for key, override := range rf.PodPaths {
		target := key
		if !strings.HasPrefix(target, "/") {
			target = podpath.Join(c.path, target)
		}
		c.routes[podpath.Clean(target)] = override
	}
	return nil
}

// CollectionFor returns the collection owning podPath: the nearest ancestor
// directory with a blueprint.
func (p *Pod) CollectionFor(podPath string) (*Collection, error) {
	dir, ok := p.collectionDir(podPath)
	if !ok {
		return nil, &errors.CollectionNotFoundError{Path: podpath.Dir(podPath)}
	}
	return p.GetCollection(dir)
}

func (p *Pod) collectionDir(podPath string) (string, bool) {
	dir := podpath.Dir(podpath.Clean(podPath))
	for podpath.HasPrefix(dir, podpath.ContentRoot) && dir != podpath.ContentRoot {
		if p.store.Exists(podpath.Join(dir, podpath.BlueprintName)) {
			return dir, true
		}
		dir = podpath.Dir(dir)
	}
	return "", false
}

// ListCollections returns every collection under the content root, sorted
// by path.
func (p *Pod) ListCollections() ([]*Collection, error) {
	files, err := p.store.List(podpath.ContentRoot)
	if err != nil {
		return nil, err
	}
	var out []*Collection
	for _, file := range files {
		if !podpath.IsBlueprint(file) {
			continue
		}
		c, err := p.GetCollection(podpath.Dir(file))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

// Path returns the collection directory.
func (c *Collection) Path() string { return c.path }

// Name returns the collection path relative to the content root.
func (c *Collection) Name() string { return podpath.Rel(podpath.ContentRoot, c.path) }

// BlueprintPath returns the blueprint file.
func (c *Collection) BlueprintPath() string { return podpath.Join(c.path, podpath.BlueprintName) }

// Fields returns the untagged blueprint.
func (c *Collection) Fields() map[string]any { return c.fields }

// Title returns the blueprint $title.
func (c *Collection) Title() string { return cast.ToString(c.fields["$title"]) }

// View returns the default view of the collection's documents.
func (c *Collection) View() string { return cast.ToString(c.fields["$view"]) }

// PathFormat returns the collection's base $path.
func (c *Collection) PathFormat() string { return cast.ToString(c.fields["$path"]) }

// LocalizedPathFormat returns $localization.path.
func (c *Collection) LocalizedPathFormat() string { return c.loc.path }

// Categories returns $categories.
func (c *Collection) Categories() []string { return cast.ToStringSlice(c.fields["$categories"]) }

// Draft reports whether the whole collection is a draft.
func (c *Collection) Draft() bool { return cast.ToBool(c.fields["$draft"]) }

// DefaultLocale resolves the collection default locale, falling back to the
// pod.
func (c *Collection) DefaultLocale() string {
	if c.loc.defaultLocale != "" {
		return c.loc.defaultLocale
	}
	spec, err := c.pod.Podspec()
	if err != nil {
		return ""
	}
	return spec.loc.defaultLocale
}

// Locales resolves the collection locales, falling back to the pod.
func (c *Collection) Locales() []string {
	if c.loc.localesDefined {
		return append([]string(nil), c.loc.locales...)
	}
	spec, err := c.pod.Podspec()
	if err != nil {
		return nil
	}
	return spec.Locales()
}

// RouteOverride returns the _routes.yaml entry for podPath.
func (c *Collection) RouteOverride(podPath string) (RouteOverride, bool) {
	o, ok := c.routes[podpath.RootPodPath(podpath.Clean(podPath))]
	return o, ok
}

// Owns reports whether podPath belongs to this collection and not to a
// nested one.
func (c *Collection) Owns(podPath string) bool {
	dir, ok := c.pod.collectionDir(podPath)
	return ok && dir == c.path
}

// ListDocPaths returns the root pod paths of the collection's documents.
// Locale variants, underscore files and files of nested collections are
// skipped.
func (c *Collection) ListDocPaths() ([]string, error) {
	files, err := c.pod.store.List(c.path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, file := range files {
		if strings.HasPrefix(podpath.Base(file), "_") || !IsDocumentFile(file) {
			continue
		}
		if _, locale := podpath.SplitLocale(file); locale != "" {
			continue
		}
		if !c.Owns(file) {
			continue
		}
		out = append(out, file)
	}
	return out, nil
}

// ListDocs loads every document in locale, ordered by $order and then pod
// path. Documents that fail to load are reported together in a BulkErrors;
// the rest are still returned.
func (c *Collection) ListDocs(locale string) ([]*Document, error) {
	paths, err := c.ListDocPaths()
	if err != nil {
		return nil, err
	}
	bulk := errors.NewBulkErrors()
	docs := make([]*Document, 0, len(paths))
	for _, podPath := range paths {
		doc, err := c.pod.GetDoc(podPath, locale)
		if err != nil {
			bulk.Add(podPath, locale, err, errors.Traceback(err))
			continue
		}
		docs = append(docs, doc)
	}
	sortDocs(docs)
	return docs, bulk.ErrOrNil()
}

// ListServableDocuments is ListDocs without hidden, draft and unrouted
// documents.
func (c *Collection) ListServableDocuments(locale string) ([]*Document, error) {
	docs, err := c.ListDocs(locale)
	out := docs[:0]
	for _, doc := range docs {
		if doc.Hidden() || doc.Draft() || doc.PathFormat() == "" {
			continue
		}
		out = append(out, doc)
	}
	return out, err
}

func sortDocs(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		oi, iok := docs[i].Order()
		oj, jok := docs[j].Order()
		if iok != jok {
			return iok
		}
		if iok && oi != oj {
			return oi < oj
		}
		return docs[i].podPath < docs[j].podPath
	})
}
