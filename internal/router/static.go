package router

import (
	"crypto/md5"
	"encoding/hex"
	"path"
	"regexp"
	"strings"

	"github.com/conneroisu/grow/internal/podpath"
)

// StaticConfig describes a static directory served at a URL prefix.
type StaticConfig struct {
	// StaticDir is the pod directory holding the files.
	StaticDir string `mapstructure:"static_dir"`
	// ServeAt is the URL prefix, possibly containing "{locale}" which is
	// already parameterized as ":locale" when it reaches the router.
	ServeAt string `mapstructure:"serve_at"`
	// Fingerprinted appends the content md5 to served filenames.
	Fingerprinted bool `mapstructure:"fingerprinted"`
	// Localization optionally serves per-locale overrides of the files.
	Localization *StaticLocalization `mapstructure:"localization"`
}

// StaticLocalization is the per-locale variant of a static directory.
type StaticLocalization struct {
	StaticDir string `mapstructure:"static_dir"`
	ServeAt   string `mapstructure:"serve_at"`
}

// StaticFile is a concrete file inside a static directory.
type StaticFile struct {
	PodPath string
	Locale  string
	// Hash is the hex md5 of the file contents, used when fingerprinting.
	Hash string
}

// Static route options.
const (
	OptionSource        = "source"
	OptionFingerprinted = "fingerprinted"
	OptionLocalized     = "localized"
	OptionServeAt       = "serve_at"
)

// AddStatic adds the abstract ":filename" route of cfg, its localized variant
// and one concrete route per file.
func (r *Router) AddStatic(cfg StaticConfig, files []StaticFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := Meta{PodPath: podpath.Clean(cfg.StaticDir), Options: map[string]any{
		OptionSource:        podpath.Clean(cfg.StaticDir),
		OptionServeAt:       cfg.ServeAt,
		OptionFingerprinted: cfg.Fingerprinted,
	}}
	if err := r.add(newRoute(joinServeAt(cfg.ServeAt, ":filename"), KindStatic, base)); err != nil {
		return err
	}

	if loc := cfg.Localization; loc != nil {
		meta := Meta{PodPath: podpath.Clean(loc.StaticDir), Options: map[string]any{
			OptionSource:        podpath.Clean(loc.StaticDir),
			OptionServeAt:       loc.ServeAt,
			OptionFingerprinted: cfg.Fingerprinted,
			OptionLocalized:     true,
		}}
		if err := r.add(newRoute(joinServeAt(loc.ServeAt, ":filename"), KindStatic, meta)); err != nil {
			return err
		}
	}

	for _, f := range files {
		servePath, err := StaticServingPath(cfg, f)
		if err != nil {
			return err
		}
		meta := Meta{PodPath: f.PodPath, Locale: f.Locale, Options: map[string]any{
			OptionFingerprinted: cfg.Fingerprinted,
		}}
		if err := r.add(newRoute(servePath, KindStatic, meta)); err != nil {
			return err
		}
	}
	return nil
}

// StaticServingPath returns the concrete URL of a static file.
func StaticServingPath(cfg StaticConfig, f StaticFile) (string, error) {
	dir, serveAt := cfg.StaticDir, cfg.ServeAt
	if f.Locale != "" && cfg.Localization != nil {
		dir = strings.ReplaceAll(cfg.Localization.StaticDir, "{locale}", f.Locale)
		serveAt = strings.NewReplacer(":locale", f.Locale, "{locale}", f.Locale).Replace(cfg.Localization.ServeAt)
	}
	rel := podpath.Rel(dir, f.PodPath)
	if cfg.Fingerprinted && f.Hash != "" {
		rel = Fingerprint(rel, f.Hash)
	}
	return joinServeAt(serveAt, rel), nil
}

func joinServeAt(serveAt, rest string) string {
	return strings.TrimSuffix(serveAt, "/") + "/" + strings.TrimPrefix(rest, "/")
}

// Hash returns the hex md5 of content.
func Hash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// Fingerprint inserts hash into the basename of name, before a ".min.<ext>"
// or plain extension: "css/main.min.css" -> "css/main-<hash>.min.css".
func Fingerprint(name, hash string) string {
	dir, file := path.Split(name)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if strings.HasSuffix(stem, ".min") {
		stem = strings.TrimSuffix(stem, ".min")
		ext = ".min" + ext
	}
	return dir + stem + "-" + hash + ext
}

var fingerprintPattern = regexp.MustCompile(`-[0-9a-f]{32}((?:\.min)?\.[^./]+|)$`)

// StripFingerprint reverses Fingerprint.
func StripFingerprint(name string) string {
	return fingerprintPattern.ReplaceAllString(name, "$1")
}
