// Package pod is the content-and-routing core: the pod and its podspec,
// collections and documents, static files, route building, render
// controllers and the built-in extension hooks.
package pod

import (
	"context"
	"sync"

	"github.com/conneroisu/grow/internal/cache"
	"github.com/conneroisu/grow/internal/catalog"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podfs"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/render"
	"github.com/conneroisu/grow/internal/router"
)

// Options configures a Pod.
type Options struct {
	// Env names the environment matched by "@env.<name>" keys and recorded
	// in the routes cache.
	Env string
	// Fingerprint is substituted for "{env.fingerprint}".
	Fingerprint string
	// PoolSize is the number of render environments per locale.
	PoolSize      int
	FileCacheSize int
	// Dev enables development behavior such as the render banner.
	Dev bool
	// Extensions are registered on the hook bus after the built-in ones.
	Extensions []hooks.Extension
	// Factories build the extensions named in the podspec.
	Factories *hooks.Factories
	Logger    logging.Logger
}

// Pod owns all pod state: configuration, caches, router, hook bus, catalogs
// and render environments.
type Pod struct {
	store       *podfs.FS
	env         string
	fingerprint string
	dev         bool
	logger      logging.Logger
	errs        *errors.ErrorHandler

	cache        *cache.PodCache[*Collection, *Document]
	router       *router.Router
	hooks        *hooks.Bus
	catalogs     *catalog.Catalogs
	pool         *render.Pool
	constructors map[string]Constructor

	specMu  sync.Mutex
	podspec *Podspec

	routerMu sync.RWMutex

	docMu sync.Mutex
}

// New creates a pod over store. The podspec is read lazily.
func New(store *podfs.FS, opts Options) (*Pod, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	pc, err := cache.New[*Collection, *Document](store, logger, cache.Options{FileCacheSize: opts.FileCacheSize})
	if err != nil {
		return nil, err
	}

	p := &Pod{
		store:        store,
		env:          opts.Env,
		fingerprint:  opts.Fingerprint,
		dev:          opts.Dev,
		logger:       logger.WithComponent("pod"),
		cache:        pc,
		router:       router.New(logger),
		hooks:        hooks.NewBus(logger),
		catalogs:     catalog.NewCatalogs(store, logger),
		constructors: defaultConstructors(),
	}
	p.errs = errors.NewErrorHandler(p.logger)
	p.pool = render.NewPool(opts.PoolSize, p.newEnv)
	p.cache.Objects.Create(fingerprintsCache, cache.ObjectCacheOptions{CanReset: true, WriteToFile: true, SeparateFile: true})

	if err := p.hooks.Register(newPodCacheExtension(p)); err != nil {
		return nil, err
	}
	if err := p.hooks.Register(newRoutesExtension(p)); err != nil {
		return nil, err
	}
	for _, ext := range opts.Extensions {
		if err := p.hooks.Register(ext); err != nil {
			return nil, err
		}
	}
	if opts.Factories != nil {
		if err := p.registerConfiguredExtensions(opts.Factories); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pod) registerConfiguredExtensions(factories *hooks.Factories) error {
	spec, err := p.Podspec()
	if err != nil {
		return err
	}
	for _, cfg := range spec.Extensions {
		ext, err := factories.Build(cfg.Name, cfg.Options)
		if err != nil {
			return err
		}
		if err := p.hooks.Register(ext); err != nil {
			return err
		}
	}
	return nil
}

// Store returns the pod's blob store.
func (p *Pod) Store() *podfs.FS { return p.store }

// Env returns the environment name.
func (p *Pod) Env() string { return p.env }

// Dev reports whether the pod runs in development mode.
func (p *Pod) Dev() bool { return p.dev }

// Logger returns the pod logger.
func (p *Pod) Logger() logging.Logger { return p.logger }

// Cache returns the pod cache.
func (p *Pod) Cache() *cache.PodCache[*Collection, *Document] { return p.cache }

// Router returns the route table. Call LoadRoutes to populate it.
func (p *Pod) Router() *router.Router {
	p.routerMu.RLock()
	defer p.routerMu.RUnlock()
	return p.router
}

// Hooks returns the extension hook bus.
func (p *Pod) Hooks() *hooks.Bus { return p.hooks }

// Pool returns the render environment pool.
func (p *Pod) Pool() *render.Pool { return p.pool }

// Catalogs returns the message catalogs.
func (p *Pod) Catalogs() *catalog.Catalogs { return p.catalogs }

// RegisterConstructor adds or replaces a YAML tag constructor such as
// "!g.doc".
func (p *Pod) RegisterConstructor(tag string, c Constructor) {
	p.constructors[tag] = c
}

// Podspec returns the parsed podspec, loading it on first use. A missing
// podspec yields an empty configuration.
func (p *Pod) Podspec() (*Podspec, error) {
	p.specMu.Lock()
	defer p.specMu.Unlock()
	if p.podspec != nil {
		return p.podspec, nil
	}

	raw := map[string]any{}
	if p.store.Exists(PodspecPath) {
		data, err := p.ReadFile(PodspecPath)
		if err != nil {
			return nil, err
		}
		v, err := p.newTagLoader("").decodeYAML(data)
		if err != nil {
			return nil, errors.NewFormatError(PodspecPath, 0, "invalid podspec", err)
		}
		if m, ok := v.(map[string]any); ok {
			raw = m
		} else if v != nil {
			return nil, errors.NewFormatError(PodspecPath, 0, "podspec must be a mapping", nil)
		}
	}
	spec, err := ParsePodspec(raw, p.env)
	if err != nil {
		return nil, err
	}
	p.podspec = spec
	return spec, nil
}

func (p *Pod) resetPodspec() {
	p.specMu.Lock()
	defer p.specMu.Unlock()
	p.podspec = nil
}

// ReadFile reads podPath through the file cache.
func (p *Pod) ReadFile(podPath string) ([]byte, error) {
	return p.cache.Files.Read(podPath)
}

const frontMatterProp = "front_matter"

// frontMatter returns the parsed front matter of a document file. Base files
// are cached under the empty locale and variants under their locale.
func (p *Pod) frontMatter(filePath string) (*FrontMatter, error) {
	root, locale := podpath.SplitLocale(filePath)
	if v, ok := p.cache.Documents.Get(root, locale, frontMatterProp); ok {
		return v.(*FrontMatter), nil
	}
	data, err := p.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	fm, err := p.newTagLoader(root).splitFrontMatter(filePath, data, FormatOf(root))
	if err != nil {
		return nil, err
	}
	p.cache.Documents.Add(root, locale, frontMatterProp, fm)
	return fm, nil
}

// GetDoc returns the document at podPath in locale. A locale suffix in
// podPath is used when locale is empty; an empty locale means the
// document's default locale. The same instance is returned for a key until
// the document is invalidated.
func (p *Pod) GetDoc(podPath, locale string) (*Document, error) {
	root, fileLocale := podpath.SplitLocale(podpath.Clean(podPath))
	if locale == "" {
		locale = fileLocale
	}
	c, err := p.CollectionFor(root)
	if err != nil {
		return nil, err
	}
	if doc, ok := p.cache.Collections.GetDocument(c.path, root, locale); ok {
		return doc, nil
	}

	p.docMu.Lock()
	defer p.docMu.Unlock()
	if doc, ok := p.cache.Collections.GetDocument(c.path, root, locale); ok {
		return doc, nil
	}
	if !p.store.Exists(root) {
		return nil, &errors.DocumentNotFoundError{PodPath: root, Locale: locale}
	}

	doc := newDocument(p, root, locale, c)
	if err := doc.load(); err != nil {
		return nil, err
	}
	if locale == "" {
		doc = p.fixDefaultLocale(c, doc)
	}
	p.cache.Collections.AddDocument(c.path, root, locale, doc)
	return doc, nil
}

// fixDefaultLocale re-homes a document requested without a locale under its
// resolved default locale, reusing an instance already cached there.
func (p *Pod) fixDefaultLocale(c *Collection, doc *Document) *Document {
	if doc.locale == "" {
		return doc
	}
	if existing, ok := p.cache.Collections.GetDocument(c.path, doc.podPath, doc.locale); ok {
		return existing
	}
	if len(doc.locales) > 0 && !containsLocale(doc.locales, doc.locale) {
		p.logger.Warn(context.Background(), nil, "Default locale is not among the document locales",
			"pod_path", doc.podPath, "default_locale", doc.locale, "locales", doc.locales)
	}
	p.cache.Collections.AddDocument(c.path, doc.podPath, doc.locale, doc)
	return doc
}

// ListDocs lists the documents of every collection in locale.
func (p *Pod) ListDocs(locale string) ([]*Document, error) {
	collections, err := p.ListCollections()
	if err != nil {
		return nil, err
	}
	bulk := errors.NewBulkErrors()
	var out []*Document
	for _, c := range collections {
		docs, err := c.ListDocs(locale)
		out = append(out, docs...)
		if err != nil {
			var be *errors.BulkErrors
			if errors.As(err, &be) {
				for _, item := range be.Errors() {
					bulk.Add(item.PodPath, item.Locale, item.Err, item.Traceback)
				}
				continue
			}
			return out, err
		}
	}
	return out, bulk.ErrOrNil()
}

// LoadCache restores persisted caches.
func (p *Pod) LoadCache(ctx context.Context) error {
	return p.cache.Load(ctx)
}

// WriteCache persists dirty caches. A failure leaves the in-memory caches
// intact, so the error is recoverable.
func (p *Pod) WriteCache(ctx context.Context) error {
	if err := p.cache.Write(ctx); err != nil {
		ge := errors.WrapIO(err, errors.ErrCodeCacheWrite, "write caches")
		ge.Recoverable = true
		return ge
	}
	return nil
}
