// Package loader decodes many asset files in parallel into one session.
//
// Each file is decoded on a bounded worker pool under its own cancellable
// context. Successful fragments are merged into the session as they finish;
// once every file is done the session's references are resolved. A file that
// fails or is cancelled affects only its own result.
package loader

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/formats"
)

// Options configures a Loader.
type Options struct {
	// Workers bounds concurrent decodes. 0 means GOMAXPROCS.
	Workers int
	// Decode is the template for every file's decode options; Name and Hint
	// are filled in per source.
	Decode formats.Options
	Logger *zap.Logger
}

// Result is the outcome of one source.
type Result struct {
	Name     string
	Fragment *asset.Fragment
	Err      error
	Duration time.Duration
}

// Loader feeds sources into a session.
type Loader struct {
	s    *asset.Session
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	cancels map[string][]context.CancelFunc
}

// New returns a loader merging into s.
func New(s *asset.Session, opts Options) *Loader {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Loader{
		s:       s,
		opts:    opts,
		log:     log.Named("loader"),
		cancels: make(map[string][]context.CancelFunc),
	}
}

// Load decodes sources into s and resolves references.
func Load(ctx context.Context, s *asset.Session, sources []Source, opts Options) ([]Result, error) {
	return New(s, opts).Load(ctx, sources)
}

// Load decodes every source, merges the fragments and resolves references.
//
// Results are in source order. The returned error combines the per-file
// failures; it is the context's error alone when ctx ends before the load
// completes, in which case references are left unresolved.
func (l *Loader) Load(ctx context.Context, sources []Source) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(sources))

	ctxs := make([]context.Context, len(sources))
	l.mu.Lock()
	for i, src := range sources {
		fctx, cancel := context.WithCancel(ctx)
		ctxs[i] = fctx
		l.cancels[src.Name] = append(l.cancels[src.Name], cancel)
	}
	l.mu.Unlock()
	defer l.release(sources)

	var g errgroup.Group
	g.SetLimit(l.opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = l.loadOne(ctxs[i], src)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	var errs error
	for _, res := range results {
		errs = multierr.Append(errs, res.Err)
	}

	report, err := l.s.Resolve(ctx)
	if err != nil {
		return results, err
	}

	l.log.Info("load complete",
		zap.Stringer("session", l.s.ID()),
		zap.Int("files", len(sources)),
		zap.Int("failed", len(multierr.Errors(errs))),
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", len(report.Unresolved)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, errs
}

func (l *Loader) loadOne(ctx context.Context, src Source) Result {
	start := time.Now()
	res := Result{Name: src.Name}

	log := l.log.With(zap.String("file", src.Name))

	data, err := src.Open(ctx)
	if err == nil {
		opts := l.opts.Decode
		opts.Name = src.Name
		opts.Hint = src.hint()
		opts.Logger = l.log
		res.Fragment, err = formats.Decode(ctx, data, opts)
	}

	switch {
	case ctx.Err() != nil:
		res.Fragment = nil
		res.Err = errors.Wrapf(ctx.Err(), "%s", src.Name)
		log.Debug("cancelled")
	case err != nil:
		res.Err = errors.Wrapf(err, "%s", src.Name)
		d := asset.Diagnostic{Kind: asset.KindFormat, File: src.Name, Err: err}
		var fe *formats.FormatError
		if errors.As(err, &fe) {
			d.Offset = fe.Offset
		}
		l.s.Report(d)
		log.Warn("decode failed", zap.Error(err))
	default:
		l.s.Merge(res.Fragment)
		log.Debug("merged",
			zap.Int("unknown", len(res.Fragment.Unknown)),
			zap.Int("diagnostics", len(res.Fragment.Diagnostics)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	res.Duration = time.Since(start)
	return res
}

// Cancel cancels every source named name in the running load. It reports
// whether any was found. Sources already merged are unaffected.
func (l *Loader) Cancel(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cancels, ok := l.cancels[name]
	for _, cancel := range cancels {
		cancel()
	}
	return ok
}

func (l *Loader) release(sources []Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, src := range sources {
		for _, cancel := range l.cancels[src.Name] {
			cancel()
		}
		delete(l.cancels, src.Name)
	}
}
