// Package driver runs weave jobs: load a snapshot, weave, write the result.
package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"shadowgen/internal/meta"
	"shadowgen/internal/metafile"
	"shadowgen/internal/observ"
	"shadowgen/internal/pipeline"
	"shadowgen/internal/project"
	"shadowgen/internal/shadow"
	"shadowgen/internal/trace"
)

// Job describes one source snapshot to weave.
type Job struct {
	Name      string
	Input     string
	Output    string
	Companion string
	Types     []string
	Options   shadow.Options
}

// CompanionOutput is where the companion snapshot is copied: next to the
// target, under the companion's own file name.
func (j Job) CompanionOutput() string {
	if j.Companion == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(j.Output), filepath.Base(j.Companion))
}

// Result is the outcome of one job. Err is nil on success.
type Result struct {
	Job     Job
	Weave   *shadow.Result
	Timings pipeline.Timings
	Phases  observ.Report
	Err     error
}

// OK reports whether the job wrote its output.
func (r *Result) OK() bool { return r != nil && r.Err == nil }

// JobsFromManifest converts manifest jobs into runnable jobs with paths
// anchored at the manifest directory.
func JobsFromManifest(m *project.Manifest) []Job {
	if m == nil {
		return nil
	}
	opts := m.Config.Weave.Options()
	jobs := make([]Job, 0, len(m.Config.Jobs))
	for _, jc := range m.Config.Jobs {
		jobs = append(jobs, Job{
			Name:      jc.Name,
			Input:     m.Resolve(jc.Input),
			Output:    m.Resolve(jc.Output),
			Companion: m.Resolve(jc.Companion),
			Types:     append([]string(nil), jc.Types...),
			Options:   opts,
		})
	}
	return jobs
}

// RunJob loads job.Input, weaves the requested types and writes the target
// to job.Output. Nothing is written unless the weave succeeded. The returned
// Result is never nil; its Err equals the returned error.
func RunJob(ctx context.Context, job Job, sink pipeline.ProgressSink) (*Result, error) {
	if job.Name == "" {
		job.Name = filepath.Base(job.Input)
	}
	res := &Result{Job: job}
	fail := func(stage pipeline.Stage, err error) (*Result, error) {
		res.Err = fmt.Errorf("%s: %s: %w", job.Name, stage, err)
		pipeline.Emit(sink, pipeline.Event{Job: job.Name, Stage: stage, Status: pipeline.StatusError, Err: res.Err})
		return res, res.Err
	}
	if job.Input == "" || job.Output == "" {
		return fail(pipeline.StageLoad, errors.New("job needs both input and output"))
	}
	if len(job.Types) == 0 {
		return fail(pipeline.StageLoad, errors.New("job names no types"))
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRun, "job "+job.Name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer func() {
		if res.Err != nil {
			trace.Failure(tracer, trace.ScopeRun, "job "+job.Name, res.Err, span.ID())
			span.End("failed")
			return
		}
		span.WithExtra("types", strconv.Itoa(len(res.Weave.Selected))).End("")
	}()

	stage := func(st pipeline.Stage, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		pipeline.Emit(sink, pipeline.Event{Job: job.Name, Stage: st, Status: pipeline.StatusWorking})
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		res.Timings.Set(st, elapsed)
		if err != nil {
			return err
		}
		pipeline.Emit(sink, pipeline.Event{Job: job.Name, Stage: st, Status: pipeline.StatusDone, Elapsed: elapsed})
		return nil
	}

	var src, companion *meta.Module
	if err := stage(pipeline.StageLoad, func() (err error) {
		src, err = metafile.ReadFile(job.Input)
		return err
	}); err != nil {
		return fail(pipeline.StageLoad, err)
	}

	if job.Companion == "" {
		pipeline.Emit(sink, pipeline.Event{Job: job.Name, Stage: pipeline.StageCompanion, Status: pipeline.StatusSkipped})
	} else if err := stage(pipeline.StageCompanion, func() (err error) {
		companion, err = metafile.ReadFile(job.Companion)
		return err
	}); err != nil {
		return fail(pipeline.StageCompanion, err)
	}

	timer := observ.NewTimer()
	err := stage(pipeline.StageWeave, func() (err error) {
		res.Weave, err = shadow.Weave(ctx, shadow.Request{
			Source:    src,
			Types:     job.Types,
			Companion: companion,
			Timer:     timer,
		}, job.Options)
		return err
	})
	res.Phases = timer.Report()
	if err != nil {
		return fail(pipeline.StageWeave, err)
	}

	if err := stage(pipeline.StageWrite, func() error {
		if err := metafile.WriteFile(job.Output, res.Weave.Module); err != nil {
			return err
		}
		if res.Weave.Companion != nil {
			return metafile.WriteFile(job.CompanionOutput(), res.Weave.Companion)
		}
		return nil
	}); err != nil {
		return fail(pipeline.StageWrite, err)
	}
	return res, nil
}
