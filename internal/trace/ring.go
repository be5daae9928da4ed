package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events of a run so they can be shown
// after a job fails.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	start int
	n     int
	level Level
}

// DefaultRingSize is used when a non-positive capacity is requested.
const DefaultRingSize = 4096

// NewRingTracer creates a RingTracer holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, dropping the oldest event when the ring is full.
func (t *RingTracer) Emit(ev *Event) {
	if !t.level.Keeps(ev.Kind, ev.Scope) {
		return
	}
	stored := *ev
	t.mu.Lock()
	stored.Seq = NextSeq()
	if t.n < len(t.buf) {
		t.buf[(t.start+t.n)%len(t.buf)] = stored
		t.n++
	} else {
		t.buf[t.start] = stored
		t.start = (t.start + 1) % len(t.buf)
	}
	t.mu.Unlock()
}

// Snapshot returns the stored events oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Tail(0)
}

// Tail returns the last n stored events oldest first. n <= 0 means all.
func (t *RingTracer) Tail(n int) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > t.n {
		n = t.n
	}
	out := make([]Event, n)
	for i := range out {
		out[i] = t.buf[(t.start+t.n-n+i)%len(t.buf)]
	}
	return out
}

// Dump writes the last n events to w; n <= 0 writes all of them.
func (t *RingTracer) Dump(w io.Writer, format Format, n int) error {
	for _, ev := range t.Tail(n) {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
