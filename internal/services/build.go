package services

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/grow/internal/config"
	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
	"github.com/conneroisu/grow/internal/pod"
	"github.com/conneroisu/grow/internal/render"
)

// IndexFile is written for serving paths ending in "/".
const IndexFile = "index.html"

// BuildService renders every concrete route of a pod to the output directory
type BuildService struct {
	config *config.Config
	logger logging.Logger
	errs   *errors.ErrorHandler
}

// NewBuildService creates a new build service
func NewBuildService(cfg *config.Config, logger logging.Logger) *BuildService {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("build")
	return &BuildService{config: cfg, logger: logger, errs: errors.NewErrorHandler(logger)}
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	// OutDir overrides build.out_dir.
	OutDir string
	// Clean removes the output directory before writing.
	Clean    bool
	Progress render.ProgressFunc
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	OutDir   string
	Duration time.Duration
	Routes   int
	Written  int
	Bytes    int64
	// Failures lists the routes that could not be loaded or rendered.
	Failures []*errors.ItemError
}

// Success reports whether every route was written.
func (r *BuildResult) Success() bool {
	return len(r.Failures) == 0
}

// Build opens the configured pod and builds it to disk. The output directory
// is resolved against the pod root.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	p, err := OpenPod(s.config, s.logger, false)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = s.config.Build.OutDir
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(s.config.Pod.Root, outDir)
	}

	osFs := afero.NewOsFs()
	if opts.Clean {
		if err := osFs.RemoveAll(outDir); err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "clean output directory")
		}
	}
	if err := osFs.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "create output directory")
	}

	result, err := s.BuildPod(ctx, p, afero.NewBasePathFs(osFs, outDir), opts)
	if result != nil {
		result.OutDir = outDir
	}
	return result, err
}

// BuildPod builds p into out. Routes that fail to load or render are
// reported in the result and in the returned error; every other route is
// still written. Duplicate serving paths abort the build.
func (s *BuildService) BuildPod(ctx context.Context, p *pod.Pod, out afero.Fs, opts BuildOptions) (*BuildResult, error) {
	perf := logging.StartOperation(s.logger, "build")
	start := time.Now()
	result := &BuildResult{}

	if s.config.Cache.Persist {
		if err := p.LoadCache(ctx); err != nil {
			s.logger.Warn(ctx, err, "Unable to load caches")
		}
	}

	if err := p.LoadRoutes(ctx); err != nil {
		var bulk *errors.BulkErrors
		var dup *errors.DuplicatePathsError
		if !errors.As(err, &bulk) || errors.As(err, &dup) {
			perf.EndWithError(ctx, err)
			return nil, err
		}
		result.Failures = append(result.Failures, bulk.Errors()...)
	}

	controllers, err := p.Controllers(ctx)
	if err != nil {
		var bulk *errors.BulkErrors
		if !errors.As(err, &bulk) {
			perf.EndWithError(ctx, err)
			return nil, err
		}
		result.Failures = append(result.Failures, bulk.Errors()...)
	}
	result.Routes = len(controllers)

	batcher := render.NewBatcher(p.Pool(), render.Options{
		BatchSize: s.config.Build.BatchSize,
		Threaded:  s.config.Build.Threaded,
		Workers:   s.config.Build.Workers,
		Progress:  opts.Progress,
	}, s.logger)
	rendered, err := batcher.Render(ctx, controllers)
	if err != nil {
		var failed *errors.RenderErrors
		if !errors.As(err, &failed) {
			perf.EndWithError(ctx, err)
			return nil, err
		}
		result.Failures = append(result.Failures, failed.Errors()...)
	}

	for _, r := range rendered {
		name := OutputPath(r.Path)
		if err := writeOutput(out, name, r.Content); err != nil {
			result.Failures = append(result.Failures, &errors.ItemError{
				PodPath: r.PodPath, Locale: r.Locale, Path: r.Path, Err: err,
			})
			continue
		}
		result.Written++
		result.Bytes += int64(len(r.Content))
		s.logger.Debug(ctx, "Wrote route", "path", r.Path, "file", name, "pod_path", r.PodPath)
	}

	if s.config.Cache.Persist {
		if err := p.WriteCache(ctx); err != nil {
			s.errs.Handle(ctx, err, "Unable to write caches")
		}
	}

	result.Duration = time.Since(start)
	perf.End(ctx, "routes", result.Routes, "written", result.Written, "failed", len(result.Failures))
	if !result.Success() {
		failed := errors.NewRenderErrors()
		for _, item := range result.Failures {
			failed.Add(item)
		}
		return result, failed
	}
	return result, nil
}

// OutputPath maps a serving path to the file written for it.
func OutputPath(servingPath string) string {
	if servingPath == "" || strings.HasSuffix(servingPath, "/") {
		return path.Join("/", servingPath, IndexFile)
	}
	return path.Join("/", servingPath)
}

func writeOutput(fs afero.Fs, name string, content []byte) error {
	if err := fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, name, content, 0o644)
}
