package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"shadowgen/internal/observ"
	"shadowgen/internal/pipeline"
)

// TimingPayload is the machine-readable timing record of one job.
type TimingPayload struct {
	Kind    string               `json:"kind"`
	Job     string               `json:"job,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Stages  map[string]float64   `json:"stages"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// TimingPayload collects the stage and pass durations of r.
func (r *Result) TimingPayload() TimingPayload {
	payload := TimingPayload{
		Kind:    "job",
		Job:     r.Job.Name,
		TotalMS: toMillis(r.Timings.Sum()),
		Stages:  make(map[string]float64, len(pipeline.Stages)),
		Phases:  r.Phases.Phases,
	}
	for _, st := range pipeline.Stages {
		if r.Timings.Has(st) {
			payload.Stages[string(st)] = toMillis(r.Timings.Duration(st))
		}
	}
	return payload
}

// WriteTimings prints one block per job: stages, then each weave pass.
func WriteTimings(w io.Writer, results []*Result) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		p := r.TimingPayload()
		if _, err := fmt.Fprintf(w, "%s: total %.2f ms\n", p.Job, p.TotalMS); err != nil {
			return err
		}
		for _, st := range pipeline.Stages {
			ms, ok := p.Stages[string(st)]
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %-10s %8.2f ms\n", st, ms); err != nil {
				return err
			}
		}
		for _, ph := range p.Phases {
			if _, err := fmt.Fprintf(w, "    %-22s %8.2f ms\n", ph.Name, ph.DurationMS); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTimingsJSON emits one JSON object per job.
func WriteTimingsJSON(w io.Writer, results []*Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := enc.Encode(r.TimingPayload()); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
