package catalog

import (
	"bytes"
	"context"
	"path"
	"sort"
	"sync"

	"golang.org/x/text/language"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
)

const (
	// Dir holds all catalogs.
	Dir = "/translations"
	// TemplatePath is the extracted message template.
	TemplatePath = Dir + "/messages.pot"
)

// Path returns the PO file for locale.
func Path(locale string) string {
	return Dir + "/" + locale + "/LC_MESSAGES/messages.po"
}

// Store reads and writes files by pod path.
type Store interface {
	ReadFile(podPath string) ([]byte, error)
	WriteFile(podPath string, data []byte) error
	Exists(podPath string) bool
	ListDir(dir string) ([]string, error)
}

// Catalogs loads catalogs lazily and keeps them until Reset.
type Catalogs struct {
	store  Store
	logger logging.Logger

	mu     sync.Mutex
	loaded map[string]*Catalog
}

// NewCatalogs creates a catalog set backed by store.
func NewCatalogs(store Store, logger logging.Logger) *Catalogs {
	return &Catalogs{
		store:  store,
		logger: logger.WithComponent("catalogs"),
		loaded: make(map[string]*Catalog),
	}
}

// ValidateLocale checks that locale is a well-formed BCP 47 tag.
// Underscored identifiers such as de_DE are accepted.
func ValidateLocale(locale string) error {
	if locale == "" {
		return nil
	}
	if _, err := language.Parse(locale); err != nil {
		return errors.WrapConfig(err, errors.ErrCodeBadLocales, "invalid locale "+locale)
	}
	return nil
}

// Get returns the catalog for locale. A missing PO file yields an empty
// catalog, so lookups fall back to message ids.
func (c *Catalogs) Get(ctx context.Context, locale string) (*Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cat, ok := c.loaded[locale]; ok {
		return cat, nil
	}
	if err := ValidateLocale(locale); err != nil {
		return nil, err
	}

	cat := New(locale)
	poPath := Path(locale)
	if locale != "" && c.store.Exists(poPath) {
		data, err := c.store.ReadFile(poPath)
		if err != nil {
			return nil, err
		}
		parsed, err := Parse(bytes.NewReader(data), poPath, locale)
		if err != nil {
			return nil, err
		}
		cat = parsed
		c.logger.Debug(ctx, "catalog loaded", "locale", locale, "messages", cat.Len())
	}
	c.loaded[locale] = cat
	return cat, nil
}

// Gettext translates id for locale, falling back to id on any failure.
func (c *Catalogs) Gettext(ctx context.Context, locale, id string) string {
	cat, err := c.Get(ctx, locale)
	if err != nil {
		c.logger.Warn(ctx, err, "catalog unavailable", "locale", locale)
		return id
	}
	return cat.Gettext(id)
}

// Locales lists locales that have a catalog directory.
func (c *Catalogs) Locales() ([]string, error) {
	entries, err := c.store.ListDir(Dir)
	if err != nil {
		return nil, err
	}
	var locales []string
	for _, entry := range entries {
		name := path.Base(entry)
		if c.store.Exists(Path(name)) {
			locales = append(locales, name)
		}
	}
	sort.Strings(locales)
	return locales, nil
}

// Reset drops loaded catalogs.
func (c *Catalogs) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = make(map[string]*Catalog)
}

// Save writes cat to its locale path, or to the template path when the
// catalog has no locale.
func (c *Catalogs) Save(cat *Catalog) error {
	var buf bytes.Buffer
	if err := cat.Write(&buf); err != nil {
		return err
	}
	target := TemplatePath
	if cat.Locale != "" {
		target = Path(cat.Locale)
	}
	if err := c.store.WriteFile(target, buf.Bytes()); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cat.Locale != "" {
		c.loaded[cat.Locale] = cat
	}
	return nil
}

// LoadTemplate reads the extracted template, if any.
func (c *Catalogs) LoadTemplate() (*Catalog, error) {
	if !c.store.Exists(TemplatePath) {
		return New(""), nil
	}
	data, err := c.store.ReadFile(TemplatePath)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data), TemplatePath, "")
}

// Update merges template into the catalog for each locale and saves the
// results. Locales without a catalog get a new one.
func (c *Catalogs) Update(ctx context.Context, template *Catalog, locales []string) (map[string]MergeStats, error) {
	stats := make(map[string]MergeStats, len(locales))
	for _, locale := range locales {
		if locale == "" {
			continue
		}
		cat, err := c.Get(ctx, locale)
		if err != nil {
			return stats, err
		}
		if cat.Header["Language"] == "" {
			cat.Header["Language"] = locale
		}
		if cat.Header["Content-Type"] == "" {
			cat.Header["Content-Type"] = "text/plain; charset=UTF-8"
		}
		stats[locale] = cat.Merge(template)
		if err := c.Save(cat); err != nil {
			return stats, err
		}
		c.logger.Info(ctx, "catalog updated", "locale", locale,
			"added", stats[locale].Added, "obsolete", stats[locale].Obsolete)
	}
	return stats, nil
}
