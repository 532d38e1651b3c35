package pod

import (
	"context"
	"mime"
	"strings"

	"github.com/spf13/cast"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/pathformat"
	"github.com/conneroisu/grow/internal/podpath"
	"github.com/conneroisu/grow/internal/router"
)

// fingerprintsCache is the object cache holding static file hashes.
const fingerprintsCache = "fingerprints"

// StaticDocument is a file served from a static directory.
type StaticDocument struct {
	pod     *Pod
	podPath string
	locale  string
	config  router.StaticConfig
}

// StaticConfigs returns the static directories with serve_at formats
// parameterized, after the static_dir hook chain has had a chance to add
// more.
func (p *Pod) StaticConfigs(ctx context.Context) ([]router.StaticConfig, error) {
	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	configs := make([]router.StaticConfig, 0, len(spec.StaticDirs))
	for _, cfg := range spec.StaticDirs {
		configs = append(configs, normalizeStaticConfig(spec, cfg))
	}

	result, err := p.hooks.Trigger(ctx, hooks.StaticDir, configs, p)
	if extended, ok := result.([]router.StaticConfig); ok {
		configs = extended
	}
	if err != nil {
		p.errs.Handle(ctx, err, "static_dir hook failed")
	}
	return configs, nil
}

func normalizeStaticConfig(spec *Podspec, cfg router.StaticConfig) router.StaticConfig {
	ctx := pathformat.Context{Root: spec.Root}
	cfg.StaticDir = podpath.Clean(cfg.StaticDir)
	cfg.ServeAt = pathformat.Parameterize(cfg.ServeAt, ctx)
	if cfg.Localization != nil {
		loc := *cfg.Localization
		loc.StaticDir = podpath.Clean(loc.StaticDir)
		loc.ServeAt = pathformat.Parameterize(loc.ServeAt, ctx)
		cfg.Localization = &loc
	}
	return cfg
}

// staticFiles lists the files served by cfg. Localized directories are
// listed once per pod locale.
func (p *Pod) staticFiles(cfg router.StaticConfig) ([]router.StaticFile, error) {
	spec, err := p.Podspec()
	if err != nil {
		return nil, err
	}
	var out []router.StaticFile
	add := func(dir, locale string) error {
		files, err := p.store.List(dir)
		if err != nil {
			return err
		}
		for _, file := range files {
			f := router.StaticFile{PodPath: file, Locale: locale}
			if cfg.Fingerprinted {
				hash, err := p.fileFingerprint(file)
				if err != nil {
					return err
				}
				f.Hash = hash
			}
			out = append(out, f)
		}
		return nil
	}

	if err := add(cfg.StaticDir, ""); err != nil {
		return nil, err
	}
	if loc := cfg.Localization; loc != nil {
		for _, locale := range spec.Locales() {
			dir := replaceLocale(loc.StaticDir, locale)
			if dir == cfg.StaticDir {
				continue
			}
			if err := add(dir, locale); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// fileFingerprint returns the md5 of a file, cached in the fingerprints object
// cache until the file changes.
func (p *Pod) fileFingerprint(podPath string) (string, error) {
	fingerprints := p.cache.Objects.Get(fingerprintsCache)
	if v, ok := fingerprints.Get(podPath); ok {
		if hash := cast.ToString(v); hash != "" {
			return hash, nil
		}
	}
	data, err := p.ReadFile(podPath)
	if err != nil {
		return "", err
	}
	hash := router.Hash(data)
	fingerprints.Add(podPath, hash)
	return hash, nil
}

// GetStatic returns the static file at podPath.
func (p *Pod) GetStatic(ctx context.Context, podPath, locale string) (*StaticDocument, error) {
	podPath = podpath.Clean(podPath)
	if !p.store.Exists(podPath) {
		return nil, &errors.DocumentNotFoundError{PodPath: podPath, Locale: locale}
	}
	configs, err := p.StaticConfigs(ctx)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if podpath.HasPrefix(podPath, cfg.StaticDir) {
			return &StaticDocument{pod: p, podPath: podPath, config: cfg}, nil
		}
		if loc := cfg.Localization; loc != nil && locale != "" {
			dir := replaceLocale(loc.StaticDir, locale)
			if podpath.HasPrefix(podPath, dir) {
				return &StaticDocument{pod: p, podPath: podPath, locale: locale, config: cfg}, nil
			}
		}
	}
	return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, podPath+" is not in a static directory")
}

// PodPath returns the file's pod path.
func (s *StaticDocument) PodPath() string { return s.podPath }

// Locale returns the locale of a localized static file.
func (s *StaticDocument) Locale() string { return s.locale }

// Hash returns the md5 of the file contents.
func (s *StaticDocument) Hash() (string, error) { return s.pod.fileFingerprint(s.podPath) }

// Content returns the file contents.
func (s *StaticDocument) Content() ([]byte, error) { return s.pod.ReadFile(s.podPath) }

// ContentType returns the MIME type by extension.
func (s *StaticDocument) ContentType() string { return contentType(s.podPath) }

// ServingPath returns the concrete URL of the file.
func (s *StaticDocument) ServingPath() (string, error) {
	f := router.StaticFile{PodPath: s.podPath, Locale: s.locale}
	if s.config.Fingerprinted {
		hash, err := s.Hash()
		if err != nil {
			return "", err
		}
		f.Hash = hash
	}
	return router.StaticServingPath(s.config, f)
}

// URL returns the serving path, or "" when it cannot be resolved.
func (s *StaticDocument) URL() string {
	p, err := s.ServingPath()
	if err != nil {
		return ""
	}
	return p
}

func contentType(podPath string) string {
	if t := mime.TypeByExtension(podpath.Ext(podPath)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func replaceLocale(dir, locale string) string {
	return strings.ReplaceAll(dir, "{locale}", locale)
}
