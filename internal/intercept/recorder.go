package intercept

import "sync"

// Call is one recorded invocation.
type Call struct {
	Member Member
	Args   []any
	Return any
	Err    error
}

// Recorder is an Interceptor that proceeds and remembers every call.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Intercept(inv Invocation) {
	args := append([]any(nil), inv.Arguments()...)
	err := inv.Proceed()
	r.mu.Lock()
	r.calls = append(r.calls, Call{Member: inv.Member(), Args: args, Return: inv.ReturnValue(), Err: err})
	r.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
