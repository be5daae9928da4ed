package pipeline

import "time"

// Stage is one step of a weave job.
type Stage string

const (
	StageLoad      Stage = "load"      // decode the input snapshot
	StageCompanion Stage = "companion" // decode the optional companion snapshot
	StageWeave     Stage = "weave"     // build the shadow module
	StageWrite     Stage = "write"     // encode the target snapshot
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageLoad, StageCompanion, StageWeave, StageWrite}

// stageWeight is the share of a job considered complete once a stage starts.
// Weaving dominates the cost of a job.
var stageWeight = [...]float64{0.1, 0.2, 0.5, 0.9}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Progress estimates how far a job in stage s has come, in [0, 1).
func (s Stage) Progress() float64 {
	if i := s.Index(); i >= 0 {
		return stageWeight[i]
	}
	return 0
}

// Status is the state a stage reports.
type Status string

const (
	StatusQueued  Status = "queued"  // waiting for a batch worker
	StatusWorking Status = "working" // stage running
	StatusDone    Status = "done"    // stage finished
	StatusSkipped Status = "skipped" // stage had nothing to do
	StatusError   Status = "error"   // stage failed, the job stops
)

// Terminal reports whether no further events follow for the job.
func (s Status) Terminal() bool {
	return s == StatusError
}

// Event reports the progress of one job.
type Event struct {
	Job     string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Batch workers report from their own
// goroutines, so implementations must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds the stage durations of one job. The zero value is empty.
type Timings struct {
	d   [len(stageWeight)]time.Duration
	set uint8
}

// Set records the duration of stage. Unknown stages are ignored.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	i := stage.Index()
	if t == nil || i < 0 {
		return
	}
	t.d[i] = dur
	t.set |= 1 << i
}

// Has reports whether stage ran.
func (t Timings) Has(stage Stage) bool {
	i := stage.Index()
	return i >= 0 && t.set&(1<<i) != 0
}

// Duration returns the recorded duration of stage, 0 when it did not run.
func (t Timings) Duration(stage Stage) time.Duration {
	if i := stage.Index(); i >= 0 {
		return t.d[i]
	}
	return 0
}

// Sum adds the durations of stages, or of every stage when none is given.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if len(stages) == 0 {
		stages = Stages
	}
	var total time.Duration
	for _, st := range stages {
		total += t.Duration(st)
	}
	return total
}
