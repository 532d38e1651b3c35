package pod

import (
	"context"
	"encoding/xml"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/render"
	"github.com/conneroisu/grow/internal/router"
)

// Controller renders a matched route.
type Controller interface {
	render.Controller
	Kind() router.Kind
	ContentType() string
}

// ViewData is the data a view is executed with.
type ViewData struct {
	Doc     *Document
	Podspec *Podspec
	Locale  string
	Env     string
	// Body is the rendered document body.
	Body    template.HTML
	Globals map[string]any
}

// DocumentController renders a document through its view.
type DocumentController struct {
	pod  *Pod
	doc  *Document
	path string
}

func (c *DocumentController) Kind() router.Kind   { return router.KindDoc }
func (c *DocumentController) Locale() string      { return c.doc.Locale() }
func (c *DocumentController) PodPath() string     { return c.doc.PodPath() }
func (c *DocumentController) Path() string        { return c.path }
func (c *DocumentController) ContentType() string { return "text/html; charset=utf-8" }

// Document returns the rendered document.
func (c *DocumentController) Document() *Document { return c.doc }

// Render runs pre_render on the body, renders the body and the view, then
// runs post_render on the output.
func (c *DocumentController) Render(ctx context.Context, env *render.Env) ([]byte, error) {
	p, doc := c.pod, c.doc
	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	funcs := p.templateFuncs(ctx, doc.podPath, doc.Locale())

	body := p.triggerText(ctx, hooks.PreRender, doc.Body(), doc)

	data := &ViewData{
		Doc:     doc,
		Podspec: spec,
		Locale:  doc.Locale(),
		Env:     p.env,
		Globals: env.Globals,
	}

	switch doc.Format() {
	case FormatMarkdown:
		data.Body, err = RenderMarkdown(body)
	case FormatHTML:
		var out []byte
		out, err = env.RenderString(doc.podPath, body, data, funcs)
		data.Body = template.HTML(out)
	default:
		data.Body = template.HTML(template.HTMLEscapeString(body))
	}
	if err != nil {
		return nil, errors.WrapRender(err, errors.ErrCodeRenderFailed, "render body", doc.podPath, doc.Locale())
	}

	content := []byte(data.Body)
	if view := doc.View(); view != "" {
		p.cache.Deps.Add(doc.podPath, podpath.Join(render.ViewsDir, strings.TrimPrefix(view, render.ViewsDir)))
		content, err = env.Render(view, data, funcs)
		if err != nil {
			return nil, errors.WrapRender(err, errors.ErrCodeRenderFailed, "render view "+view, doc.podPath, doc.Locale())
		}
	}

	return []byte(p.triggerText(ctx, hooks.PostRender, string(content), doc)), nil
}

// triggerText runs a text transforming chain. When a hook fails the render
// goes on with the output of the last hook that succeeded.
func (p *Pod) triggerText(ctx context.Context, key hooks.Key, text string, doc *Document) string {
	result, err := p.hooks.Trigger(ctx, key, text, doc)
	if err != nil {
		p.errs.Handle(ctx, err, "Render hook failed", "pod_path", doc.podPath, "locale", doc.Locale())
	}
	if s, ok := result.(string); ok {
		return s
	}
	return text
}

// StaticController serves a static file as is.
type StaticController struct {
	pod     *Pod
	podPath string
	locale  string
	path    string
}

func (c *StaticController) Kind() router.Kind   { return router.KindStatic }
func (c *StaticController) Locale() string      { return c.locale }
func (c *StaticController) PodPath() string     { return c.podPath }
func (c *StaticController) Path() string        { return c.path }
func (c *StaticController) ContentType() string { return contentType(c.podPath) }

// Render returns the file contents.
func (c *StaticController) Render(context.Context, *render.Env) ([]byte, error) {
	return c.pod.ReadFile(c.podPath)
}

// SitemapController renders an XML sitemap of the concrete document routes.
type SitemapController struct {
	pod    *Pod
	path   string
	config SitemapConfig
}

func (c *SitemapController) Kind() router.Kind   { return router.KindSitemap }
func (c *SitemapController) Locale() string      { return "" }
func (c *SitemapController) PodPath() string     { return PodspecPath }
func (c *SitemapController) Path() string        { return c.path }
func (c *SitemapController) ContentType() string { return "application/xml; charset=utf-8" }

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Render lists every concrete document route matching the configured
// collections and locales, sorted by path.
func (c *SitemapController) Render(context.Context, *render.Env) ([]byte, error) {
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	base := strings.TrimSuffix(c.config.BaseURL, "/")

	var urls []sitemapURL
	for _, route := range c.pod.Router().Filter(router.KindDoc) {
		if !route.IsConcrete() || !c.includes(route) {
			continue
		}
		u := sitemapURL{Loc: base + route.Pattern}
		if mod, err := c.pod.store.ModTime(route.Meta.PodPath); err == nil {
			u.LastMod = mod.UTC().Format(time.DateOnly)
		}
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool { return urls[i].Loc < urls[j].Loc })
	set.URLs = urls

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func (c *SitemapController) includes(route *router.Route) bool {
	if len(c.config.Locales) > 0 && !containsLocale(c.config.Locales, route.Meta.Locale) {
		return false
	}
	if len(c.config.Collections) == 0 {
		return true
	}
	for _, name := range c.config.Collections {
		if c.pod.collectionOwns(CollectionPath(name), route.Meta.PodPath) {
			return true
		}
	}
	return false
}

func (p *Pod) collectionOwns(collectionPath, podPath string) bool {
	dir, ok := p.collectionDir(podPath)
	return ok && dir == collectionPath
}

// Controller builds the controller for a matched route.
func (p *Pod) Controller(ctx context.Context, route *router.Route, params router.Params, path string) (Controller, error) {
	switch route.Kind {
	case router.KindDoc:
		doc, err := p.GetDoc(route.Meta.PodPath, route.Meta.Locale)
		if err != nil {
			return nil, err
		}
		return &DocumentController{pod: p, doc: doc, path: path}, nil

	case router.KindStatic:
		if route.IsConcrete() {
			return &StaticController{pod: p, podPath: route.Meta.PodPath, locale: route.Meta.Locale, path: path}, nil
		}
		return p.dynamicStatic(route, params, path)

	case router.KindSitemap:
		spec, err := p.Podspec()
		if err != nil {
			return nil, err
		}
		return &SitemapController{pod: p, path: path, config: spec.Sitemap}, nil
	}
	return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "no controller for "+string(route.Kind)+" route "+route.Pattern)
}

// dynamicStatic resolves a ":filename" static route to a file.
func (p *Pod) dynamicStatic(route *router.Route, params router.Params, path string) (Controller, error) {
	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	locale := spec.Unalias(params["locale"])
	source := strings.ReplaceAll(route.Meta.Option(router.OptionSource), "{locale}", locale)
	filename := params["filename"]
	if fingerprinted, _ := route.Meta.Options[router.OptionFingerprinted].(bool); fingerprinted {
		filename = router.StripFingerprint(filename)
	}
	podPath := podpath.Join(source, filename)
	if !podpath.HasPrefix(podPath, source) || !p.store.Exists(podPath) || p.store.IsDir(podPath) {
		return nil, &errors.DocumentNotFoundError{PodPath: podPath, Locale: locale}
	}
	return &StaticController{pod: p, podPath: podPath, locale: locale, path: path}, nil
}

// Match resolves a request path to a controller.
func (p *Pod) Match(ctx context.Context, path string) (Controller, error) {
	route, params, ok := p.Router().Match(path)
	if !ok && !strings.HasSuffix(path, "/") && podpath.Ext(path) == "" {
		route, params, ok = p.Router().Match(path + "/")
	}
	if !ok {
		return nil, &errors.DocumentNotFoundError{PodPath: path}
	}
	return p.Controller(ctx, route, params, path)
}

// Controllers returns a controller for every concrete route, in route order.
// Routes whose controller cannot be built are reported in a BulkErrors.
func (p *Pod) Controllers(ctx context.Context) ([]render.Controller, error) {
	bulk := errors.NewBulkErrors()
	var out []render.Controller
	for _, route := range p.Router().Concrete() {
		c, err := p.Controller(ctx, route, router.Params{}, route.Pattern)
		if err != nil {
			bulk.Add(route.Meta.PodPath, route.Meta.Locale, err, errors.Traceback(err))
			continue
		}
		out = append(out, c)
	}
	return out, bulk.ErrOrNil()
}
