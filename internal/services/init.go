package services

import (
	"os"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/podfs"
)

// InitService scaffolds new pods
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for pod initialization
type InitOptions struct {
	Dir string
	// Minimal writes only the podspec and tool configuration.
	Minimal bool
	// Force overwrites an existing pod.
	Force bool
}

const defaultPodspec = `localization:
  default_locale: en
  locales:
  - en

static_dirs:
- static_dir: /source/static/
  serve_at: /static/
  fingerprinted: true

sitemap:
  enabled: true
`

const defaultToolConfig = `pod:
  root: .

server:
  host: localhost
  port: 8080

build:
  out_dir: build

development:
  ui: true
  debounce: 300ms
`

var examplePod = map[string]string{
	"/content/pages/_blueprint.yaml": "$path: /{base}/\n$view: /views/base.html\n$localization:\n  path: /{locale}/{base}/\n",
	"/content/pages/index.md":        "---\n$title: Hello, grow\n$path: /\n$order: 0\n---\nEdit `content/pages/index.md` and this page reloads.\n",
	"/content/pages/about.md":        "---\n$title: About\n$order: 1\n---\nA page listed after the home page.\n",
	"/views/base.html": `<!DOCTYPE html>
<html lang="{{ .Locale }}">
<head>
  <meta charset="utf-8">
  <title>{{ .Doc.Title }}</title>
  <link rel="stylesheet" href="{{ url "/source/static/main.css" }}">
</head>
<body>
  <nav>{{ range docs "pages" }}<a href="{{ .URL }}">{{ .Title }}</a> {{ end }}</nav>
  <h1>{{ .Doc.Title }}</h1>
  {{ .Body }}
</body>
</html>
`,
	"/source/static/main.css": "body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; }\n",
}

// InitPod writes a new pod into opts.Dir.
func (s *InitService) InitPod(opts InitOptions) error {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInvalidPath, "create pod directory")
	}
	store, err := podfs.NewOS(opts.Dir)
	if err != nil {
		return err
	}
	if store.Exists(pod.PodspecPath) && !opts.Force {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "a pod already exists in "+opts.Dir).
			WithContext("suggestion", "use --force to overwrite it")
	}

	files := map[string]string{
		pod.PodspecPath:             defaultPodspec,
		"/" + config.FileName + ".yml": defaultToolConfig,
	}
	if !opts.Minimal {
		for name, content := range examplePod {
			files[name] = content
		}
	}
	for name, content := range files {
		if err := store.WriteFile(name, []byte(content)); err != nil {
			return errors.WrapIO(err, errors.ErrCodeInvalidPath, "write "+name)
		}
	}
	return nil
}
