package render

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/grow/internal/errors"
	"github.com/conneroisu/grow/internal/logging"
)

// DefaultBatchSize is the number of routes rendered by one worker.
const DefaultBatchSize = 300

// Controller renders one route.
type Controller interface {
	Locale() string
	PodPath() string
	Path() string
	Render(ctx context.Context, env *Env) ([]byte, error)
}

// Result is a rendered route.
type Result struct {
	Path    string
	PodPath string
	Locale  string
	Content []byte
}

// ProgressFunc is called after every route with the number of routes done
// and the total.
type ProgressFunc func(done, total int)

// Options configures a Batcher.
type Options struct {
	BatchSize int
	// Threaded renders batches concurrently; otherwise they run in order on
	// the calling goroutine.
	Threaded bool
	// Workers bounds concurrent batches. Zero means GOMAXPROCS.
	Workers  int
	Progress ProgressFunc
}

// Batcher buckets routes by locale, splits each bucket into batches and
// renders every batch with an environment from the pool.
type Batcher struct {
	pool    *Pool
	options Options
	logger  logging.Logger
}

// NewBatcher creates a batcher.
func NewBatcher(pool *Pool, options Options, logger logging.Logger) *Batcher {
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.Workers <= 0 {
		options.Workers = runtime.GOMAXPROCS(0)
	}
	return &Batcher{pool: pool, options: options, logger: logger.WithComponent("renderer")}
}

type batch struct {
	locale      string
	controllers []Controller
}

// Batches splits controllers into per-locale batches. Locales are ordered
// and controllers keep their relative order.
func (b *Batcher) Batches(controllers []Controller) [][]Controller {
	var out [][]Controller
	for _, bt := range b.split(controllers) {
		out = append(out, bt.controllers)
	}
	return out
}

func (b *Batcher) split(controllers []Controller) []batch {
	buckets := make(map[string][]Controller)
	for _, c := range controllers {
		buckets[c.Locale()] = append(buckets[c.Locale()], c)
	}
	locales := make([]string, 0, len(buckets))
	for locale := range buckets {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	var batches []batch
	for _, locale := range locales {
		bucket := buckets[locale]
		for start := 0; start < len(bucket); start += b.options.BatchSize {
			end := min(start+b.options.BatchSize, len(bucket))
			batches = append(batches, batch{locale: locale, controllers: bucket[start:end]})
		}
	}
	return batches
}

// Render renders every controller. Individual failures do not stop the run;
// they are returned together as *errors.RenderErrors alongside the
// successful results, which are sorted by path.
func (b *Batcher) Render(ctx context.Context, controllers []Controller) ([]Result, error) {
	batches := b.split(controllers)
	total := len(controllers)
	b.logger.Debug(ctx, "Rendering routes", "routes", total, "batches", len(batches), "threaded", b.options.Threaded)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, total)
		failed  = errors.NewRenderErrors()
		done    int64
	)

	run := func(ctx context.Context, bt batch) {
		env, err := b.pool.Get(bt.locale)
		for _, c := range bt.controllers {
			if ctx.Err() != nil {
				return
			}
			var (
				content   []byte
				renderErr error
				traceback string
			)
			if err != nil {
				renderErr, traceback = err, errors.Traceback(err)
			} else {
				content, traceback, renderErr = renderOne(ctx, c, env)
			}

			mu.Lock()
			if renderErr != nil {
				failed.Add(&errors.ItemError{
					PodPath:   c.PodPath(),
					Locale:    c.Locale(),
					Path:      c.Path(),
					Err:       renderErr,
					Traceback: traceback,
				})
			} else {
				results = append(results, Result{
					Path:    c.Path(),
					PodPath: c.PodPath(),
					Locale:  c.Locale(),
					Content: content,
				})
			}
			mu.Unlock()

			n := atomic.AddInt64(&done, 1)
			if b.options.Progress != nil {
				b.options.Progress(int(n), total)
			}
		}
	}

	if b.options.Threaded && len(batches) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(b.options.Workers, len(batches)))
		for _, bt := range batches {
			g.Go(func() error {
				run(gctx, bt)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, bt := range batches {
			run(ctx, bt)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	if failed.Len() > 0 {
		b.logger.Warn(ctx, failed, "Some routes failed to render", "failed", failed.Len(), "rendered", len(results))
	}
	return results, failed.ErrOrNil()
}

func renderOne(ctx context.Context, c Controller, env *Env) (content []byte, traceback string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewRenderError(errors.ErrCodeRenderFailed, fmt.Sprintf("panic: %v", p), nil)
			traceback = string(debug.Stack())
		}
	}()
	content, err = c.Render(ctx, env)
	if err != nil {
		traceback = errors.Traceback(err)
	}
	return content, traceback, err
}
