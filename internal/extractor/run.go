package extractor

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// RunOptions controls a batch extraction.
type RunOptions struct {
	Concurrency int       // parallel workers, at least 1
	Progress    io.Writer // progress bar destination, nil for none
}

// Failure records an image that could not be embedded.
type Failure struct {
	Path string
	Err  error
}

// RunResult holds one slot per input path; failed slots are nil.
type RunResult struct {
	Vectors  [][]float32
	Failures []Failure
}

// Succeeded returns the number of non-nil vectors.
func (r *RunResult) Succeeded() int {
	return len(r.Vectors) - len(r.Failures)
}

// Run extracts every path (relative to baseDir, forward slashes). Individual
// failures, including empty or non-finite vectors, are logged and skipped; the result keeps input order regardless
// of concurrency. Only cancellation of ctx aborts the batch.
func Run(ctx context.Context, ext Extractor, baseDir string, paths []string, opts RunOptions) (*RunResult, error) {
	workers := max(opts.Concurrency, 1)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Extracting features"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	} else {
		bar = progressbar.DefaultSilent(int64(len(paths)))
	}

	vectors := make([][]float32, len(paths))
	errs := make([]error, len(paths))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer bar.Add(1)
			vec, err := ext.Extract(gctx, filepath.Join(baseDir, filepath.FromSlash(p)))
			if err == nil {
				err = checkValues(vec)
			}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				errs[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_ = bar.Finish()

	result := &RunResult{Vectors: vectors}
	if failed.Load() > 0 {
		for i, err := range errs {
			if err != nil {
				log.Printf("Warning: failed to extract %s: %v", paths[i], err)
				result.Failures = append(result.Failures, Failure{Path: paths[i], Err: err})
			}
		}
	}
	return result, nil
}
