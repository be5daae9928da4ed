package shadow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"shadowgen/internal/meta"
	"shadowgen/internal/observ"
	"shadowgen/internal/trace"
)

// Request is the input of one weave.
type Request struct {
	Source *meta.Module
	// Types are the full names of the definitions to shadow.
	Types []string
	// Companion is carried through to Result untouched.
	Companion *meta.Module
	// Timer, when set, records every pass.
	Timer *observ.Timer
}

// Result is a woven target module with the map linking it to its source.
type Result struct {
	Module    *meta.Module
	Shadows   *ShadowMap
	Selected  []meta.DefID
	Enums     []meta.DefID
	Companion *meta.Module
}

// Weave builds the shadow module for the requested types of req.Source.
// The source module is never modified. On error the partial target is
// discarded.
func Weave(ctx context.Context, req Request, opts Options) (*Result, error) {
	if req.Source == nil {
		return nil, errors.New("shadow: no source module")
	}
	if err := meta.Validate(req.Source); err != nil {
		return nil, fmt.Errorf("shadow: source module %s: %w: %w", req.Source.Name, ErrInvalidReference, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeRun, "weave "+req.Source.Name, trace.CurrentSpan(ctx))

	c := NewContext(req.Source, opts).WithTracer(tracer, span.ID()).WithTimer(req.Timer)
	idx := req.Timer.Begin("select")
	selected := Select(req.Source, req.Types)
	enums := SelectEnums(req.Source, req.Types)
	req.Timer.End(idx, fmt.Sprintf("%d of %d names", len(selected)+len(enums), len(req.Types)))

	if err := c.BuildSkeletons(selected, enums); err != nil {
		span.End("failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		span.End("cancelled")
		return nil, err
	}
	if err := c.Attach(); err != nil {
		span.End("failed")
		return nil, err
	}

	idx = req.Timer.Begin("validate")
	err := meta.Validate(c.Dst)
	req.Timer.End(idx, "")
	if err != nil {
		trace.Failure(tracer, trace.ScopeRun, "validate", err, span.ID())
		span.End("failed")
		return nil, fmt.Errorf("shadow: target module %s is inconsistent: %w", c.Dst.Name, err)
	}
	span.WithExtra("types", strconv.Itoa(len(selected))).
		WithExtra("enums", strconv.Itoa(len(enums))).
		End("")
	return &Result{
		Module:    c.Dst,
		Shadows:   c.Shadows,
		Selected:  selected,
		Enums:     enums,
		Companion: req.Companion,
	}, nil
}
