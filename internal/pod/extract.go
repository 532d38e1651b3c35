package pod

import (
	"context"

	"github.com/conneroisu/grow/internal/catalog"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/render"
)

// Extract collects translatable messages from the podspec, blueprints,
// every part of every document file and the views. When save is set the
// template is written to the translations directory.
func (p *Pod) Extract(ctx context.Context, save bool) (*catalog.Catalog, error) {
	perf := logging.StartOperation(p.logger, "extract")
	ex := catalog.NewExtractor()

	spec, err := p.Podspec()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	ex.Data(PodspecPath, spec.Fields)

	files, err := p.store.List(podpath.ContentRoot)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	bulk := errors.NewBulkErrors()
	for _, file := range files {
		switch {
		case podpath.IsBlueprint(file):
			data, err := p.ReadFile(file)
			if err != nil {
				bulk.Add(file, "", err, "")
				continue
			}
			v, err := p.newTagLoader(file).decodeYAML(data)
			if err != nil {
				bulk.Add(file, "", errors.NewFormatError(file, 0, "invalid blueprint", err), "")
				continue
			}
			ex.Data(file, v)
		case IsDocumentFile(file) && podpath.Base(file)[0] != '_':
			fm, err := p.frontMatter(file)
			if err != nil {
				bulk.Add(file, "", err, "")
				continue
			}
			for _, part := range fm.Parts {
				ex.Data(file, part.Fields)
			}
		}
	}

	views, err := p.store.List(render.ViewsDir)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	for _, view := range views {
		data, err := p.ReadFile(view)
		if err != nil {
			bulk.Add(view, "", err, "")
			continue
		}
		if _, err := ex.View(view, string(data)); err != nil {
			bulk.Add(view, "", err, "")
		}
	}

	if save {
		if err := p.catalogs.Save(ex.Template); err != nil {
			perf.EndWithError(ctx, err)
			return ex.Template, err
		}
	}
	perf.End(ctx, "messages", ex.Template.Len(), "errors", bulk.Len())
	return ex.Template, bulk.ErrOrNil()
}

// UpdateCatalogs merges the saved template into the catalogs of locales, or
// of every pod locale when none are given.
func (p *Pod) UpdateCatalogs(ctx context.Context, locales []string) (map[string]catalog.MergeStats, error) {
	template, err := p.catalogs.LoadTemplate()
	if err != nil {
		return nil, err
	}
	if len(locales) == 0 {
		spec, err := p.Podspec()
		if err != nil {
			return nil, err
		}
		locales = spec.Locales()
	}
	return p.catalogs.Update(ctx, template, locales)
}
