// Package trace records spans and point events for a weave run.
//
// A run is traced at four granularities: the whole run, each pass
// (skeletons, constraints, interfaces, ...), each type and each member.
// The level picks how deep events are kept:
//
//   - LevelOff: nothing
//   - LevelError: failure events only
//   - LevelPhase: run and pass boundaries
//   - LevelDetail: per-type events
//   - LevelDebug: per-member events
//
// Tracers travel through context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "methods", parent)
//	defer span.End("")
//
// StreamTracer writes immediately (text or NDJSON), RingTracer keeps the last
// N events so a failed run can dump what led to the failure, MultiTracer fans
// out to both.
package trace
