package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"shadowgen/internal/pipeline"
)

// BatchOptions tune RunBatch.
type BatchOptions struct {
	// Jobs bounds the number of concurrent jobs; <= 0 means GOMAXPROCS.
	Jobs int
	Sink pipeline.ProgressSink
}

// RunBatch runs independent jobs concurrently. Results keep the order of
// jobs. A failing job does not stop the others; the returned error joins
// every job failure. Jobs not yet started when ctx is cancelled fail with
// the context error.
func RunBatch(ctx context.Context, jobs []Job, opts BatchOptions) ([]*Result, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	if err := checkOutputs(jobs); err != nil {
		return nil, err
	}
	limit := opts.Jobs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	for _, job := range jobs {
		pipeline.Emit(opts.Sink, pipeline.Event{Job: job.Name, Status: pipeline.StatusQueued})
	}

	// Indices are unique per goroutine, no mutex needed.
	results := make([]*Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(min(limit, len(jobs)))
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = &Result{Job: job, Err: fmt.Errorf("%s: %w", job.Name, err)}
				pipeline.Emit(opts.Sink, pipeline.Event{Job: job.Name, Status: pipeline.StatusError, Err: results[i].Err})
				return nil
			}
			results[i], _ = RunJob(ctx, job, opts.Sink)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

// checkOutputs rejects batches where two jobs would write the same file.
func checkOutputs(jobs []Job) error {
	seen := make(map[string]string, len(jobs))
	claim := func(path, name string) error {
		if path == "" {
			return nil
		}
		if prev, dup := seen[path]; dup {
			return fmt.Errorf("jobs %q and %q both write %s", prev, name, path)
		}
		seen[path] = name
		return nil
	}
	for _, job := range jobs {
		if err := claim(job.Output, job.Name); err != nil {
			return err
		}
		if err := claim(job.CompanionOutput(), job.Name); err != nil {
			return err
		}
	}
	return nil
}
