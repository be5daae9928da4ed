package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shadowgen/internal/metafile"
	"shadowgen/internal/pipeline"
	"shadowgen/internal/project"
	"shadowgen/internal/testkit"
	"shadowgen/internal/trace"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	b := testkit.NewBuilder(name)
	ia := b.Interface("NS", "IA")
	b.Method(ia, "Foo", b.Ref(ia), b.Ref(ia))
	a := b.Class("NS", "A")
	b.Implements(a, b.Ref(ia))
	b.Method(a, "Foo", b.Ref(ia), b.Ref(ia))
	path := filepath.Join(dir, name+metafile.Ext)
	if err := metafile.WriteFile(path, b.M); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func statuses(events []pipeline.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, string(e.Stage)+":"+string(e.Status))
	}
	return out
}

func TestRunJobWritesTarget(t *testing.T) {
	dir := t.TempDir()
	job := Job{
		Name:   "lib",
		Input:  writeSource(t, dir, "Lib"),
		Output: filepath.Join(dir, "out", "Lib.Fake.smod"),
		Types:  []string{"NS.A", "NS.IA"},
	}
	var rec pipeline.Recorder
	ring := trace.NewRingTracer(128, trace.LevelPhase)
	ctx := trace.WithTracer(context.Background(), ring)

	res, err := RunJob(ctx, job, &rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.OK() || len(res.Weave.Selected) != 2 {
		t.Fatalf("result: got=%+v", res)
	}
	out, err := metafile.ReadFile(job.Output)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if _, ok := out.FindType("Fake.NS", "A", 0); !ok {
		t.Fatalf("target lacks Fake.NS.A")
	}
	got := strings.Join(statuses(rec.For("lib")), " ")
	want := "load:working load:done companion:skipped weave:working weave:done write:working write:done"
	if got != want {
		t.Fatalf("events: got=%s want=%s", got, want)
	}
	if !res.Timings.Has(pipeline.StageWeave) || res.Timings.Has(pipeline.StageCompanion) {
		t.Fatalf("timings: got=%+v", res.Timings)
	}
	if len(res.Phases.Phases) != 9 {
		t.Fatalf("phases: got=%d want=9", len(res.Phases.Phases))
	}

	var jobSpan bool
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanEnd && ev.Name == "job lib" {
			jobSpan = ev.Extra["types"] == "2"
		}
	}
	if !jobSpan {
		t.Fatalf("missing job span end")
	}
}

func TestRunJobCopiesCompanion(t *testing.T) {
	dir := t.TempDir()
	companion := writeSource(t, dir, "Hooks")
	job := Job{
		Name:      "lib",
		Input:     writeSource(t, dir, "Lib"),
		Output:    filepath.Join(dir, "out", "Lib.Fake.smod"),
		Companion: companion,
		Types:     []string{"NS.A"},
	}
	res, err := RunJob(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Weave.Companion == nil || res.Weave.Companion.Name != "Hooks" {
		t.Fatalf("companion not passed through")
	}
	if got, want := job.CompanionOutput(), filepath.Join(dir, "out", "Hooks.smod"); got != want {
		t.Fatalf("companion output: got=%s want=%s", got, want)
	}
	if _, err := os.Stat(job.CompanionOutput()); err != nil {
		t.Fatalf("companion not written: %v", err)
	}
}

func TestRunJobFailuresWriteNothing(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.smod")
	if err := os.WriteFile(garbage, []byte("not msgpack"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cases := []struct {
		name  string
		job   Job
		stage pipeline.Stage
	}{
		{"missing input", Job{Name: "a", Input: filepath.Join(dir, "nope.smod"), Output: filepath.Join(dir, "a.smod"), Types: []string{"NS.A"}}, pipeline.StageLoad},
		{"garbage input", Job{Name: "b", Input: garbage, Output: filepath.Join(dir, "b.smod"), Types: []string{"NS.A"}}, pipeline.StageLoad},
		{"no types", Job{Name: "c", Input: garbage, Output: filepath.Join(dir, "c.smod")}, pipeline.StageLoad},
		{"missing companion", Job{Name: "d", Input: writeSource(t, dir, "Lib"), Output: filepath.Join(dir, "d.smod"), Companion: filepath.Join(dir, "gone.smod"), Types: []string{"NS.A"}}, pipeline.StageCompanion},
	}
	for _, tc := range cases {
		var rec pipeline.Recorder
		res, err := RunJob(context.Background(), tc.job, &rec)
		if err == nil || res.Err != err {
			t.Fatalf("%s: got=%v", tc.name, err)
		}
		events := rec.For(tc.job.Name)
		last := events[len(events)-1]
		if last.Status != pipeline.StatusError || last.Stage != tc.stage {
			t.Fatalf("%s: last event got=%+v want stage %s", tc.name, last, tc.stage)
		}
		if _, err := os.Stat(tc.job.Output); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("%s: output must not exist: %v", tc.name, err)
		}
	}
}

func TestRunBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "Lib")
	jobs := []Job{
		{Name: "one", Input: src, Output: filepath.Join(dir, "one.smod"), Types: []string{"NS.A"}},
		{Name: "broken", Input: filepath.Join(dir, "missing.smod"), Output: filepath.Join(dir, "broken.smod"), Types: []string{"NS.A"}},
		{Name: "three", Input: src, Output: filepath.Join(dir, "three.smod"), Types: []string{"NS.IA"}},
	}
	var rec pipeline.Recorder
	results, err := RunBatch(context.Background(), jobs, BatchOptions{Jobs: 2, Sink: &rec})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("batch error: got=%v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results: got=%d want=3", len(results))
	}
	for i, r := range results {
		if r.Job.Name != jobs[i].Name {
			t.Fatalf("order: got=%s want=%s", r.Job.Name, jobs[i].Name)
		}
	}
	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Fatalf("outcomes: got=%v %v %v", results[0].Err, results[1].Err, results[2].Err)
	}
	for _, name := range []string{"one", "three"} {
		if _, err := os.Stat(filepath.Join(dir, name+".smod")); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	if ev := rec.For("one"); ev[0].Status != pipeline.StatusQueued {
		t.Fatalf("first event: got=%+v want queued", ev[0])
	}
}

func TestRunBatchRejectsSharedOutputs(t *testing.T) {
	jobs := []Job{
		{Name: "a", Input: "a.smod", Output: "out.smod", Types: []string{"NS.A"}},
		{Name: "b", Input: "b.smod", Output: "out.smod", Types: []string{"NS.A"}},
	}
	if _, err := RunBatch(context.Background(), jobs, BatchOptions{}); err == nil || !strings.Contains(err.Error(), "both write") {
		t.Fatalf("got=%v", err)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := []Job{{Name: "a", Input: writeSource(t, dir, "Lib"), Output: filepath.Join(dir, "a.smod"), Types: []string{"NS.A"}}}
	results, err := RunBatch(ctx, jobs, BatchOptions{Jobs: 1})
	if !errors.Is(err, context.Canceled) || results[0].OK() {
		t.Fatalf("got=%v", err)
	}
}

func TestJobsFromManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, project.ManifestName)
	if err := os.WriteFile(path, []byte(project.Template("core", "NS.A")), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := project.LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	jobs := JobsFromManifest(m)
	if len(jobs) != 1 {
		t.Fatalf("jobs: got=%d want=1", len(jobs))
	}
	job := jobs[0]
	if job.Input != filepath.Join(dir, "core.smod") || job.Companion != "" || job.Options.Namespace != "Fake" {
		t.Fatalf("job: got=%+v", job)
	}
	if JobsFromManifest(nil) != nil {
		t.Fatalf("nil manifest must yield no jobs")
	}
}

func TestTimingOutput(t *testing.T) {
	dir := t.TempDir()
	res, err := RunJob(context.Background(), Job{Name: "lib", Input: writeSource(t, dir, "Lib"), Output: filepath.Join(dir, "o.smod"), Types: []string{"NS.A"}}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var text bytes.Buffer
	if err := WriteTimings(&text, []*Result{res, nil}); err != nil {
		t.Fatalf("timings: %v", err)
	}
	for _, want := range []string{"lib: total", "  load", "  write", "    select"} {
		if !strings.Contains(text.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, text.String())
		}
	}
	var js bytes.Buffer
	if err := WriteTimingsJSON(&js, []*Result{res}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var payload TimingPayload
	if err := json.Unmarshal(js.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Job != "lib" || payload.Kind != "job" {
		t.Fatalf("payload: got=%+v", payload)
	}
	if _, ok := payload.Stages["companion"]; ok {
		t.Fatalf("skipped stage must not be timed")
	}
}
