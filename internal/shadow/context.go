package shadow

import (
	"errors"
	"fmt"

	"shadowgen/internal/meta"
	"shadowgen/internal/observ"
	"shadowgen/internal/trace"
)

// ErrBaseNotBuilt is returned when a selected type is handled before its
// selected base. Select orders its result so this never happens for it.
var ErrBaseNotBuilt = errors.New("base type has no shadow yet")

// Context owns one weave: the read-only source, the target under
// construction and the shadow map linking them.
type Context struct {
	Src     *meta.Module
	Dst     *meta.Module
	Shadows *ShadowMap
	Opts    Options

	rw     *Rewriter
	tracer trace.Tracer
	span   uint64
	timer  *observ.Timer

	forward []meta.DefID
	enums   []meta.DefID
	pending map[meta.DefID]struct{}
}

// NewContext prepares an empty target module for src.
func NewContext(src *meta.Module, opts Options) *Context {
	opts = opts.WithDefaults()
	name := opts.TargetName
	if name == "" {
		name = src.Name + "." + opts.Namespace
	}
	scope := opts.SourceScope
	if scope == "" {
		scope = src.Name
	}
	dst := meta.NewModule(name)
	sm := NewShadowMap()
	return &Context{
		Src:     src,
		Dst:     dst,
		Shadows: sm,
		Opts:    opts,
		rw:      NewRewriter(src, dst, sm, opts, scope),
		tracer:  trace.Nop,
	}
}

// Rewriter exposes the reference rewriter bound to this weave.
func (c *Context) Rewriter() *Rewriter { return c.rw }

// WithTracer routes events to t under the parent span.
func (c *Context) WithTracer(t trace.Tracer, parent uint64) *Context {
	if t == nil {
		t = trace.Nop
	}
	c.tracer = t
	c.span = parent
	return c
}

// WithTimer records every pass on t.
func (c *Context) WithTimer(t *observ.Timer) *Context {
	c.timer = t
	return c
}

// BuildSkeletons runs pass 1: enums are copied, every forwarded type gets
// its shadow skeleton, and the shadow map is sealed. forward must list
// bases before derivatives.
func (c *Context) BuildSkeletons(forward, enums []meta.DefID) error {
	if c.Shadows.Sealed() {
		return ErrShadowMapSealed
	}
	span := trace.Begin(c.tracer, trace.ScopePass, "skeletons", c.span)
	idx := c.timer.Begin("skeletons")

	c.pending = make(map[meta.DefID]struct{}, len(forward))
	for _, id := range forward {
		c.pending[id] = struct{}{}
	}
	err := c.buildAll(forward, enums, span.ID())
	c.timer.End(idx, fmt.Sprintf("%d types, %d enums", len(forward), len(enums)))
	if err != nil {
		trace.Failure(c.tracer, trace.ScopePass, "skeletons", err, span.ID())
		span.End("failed")
		return err
	}
	c.forward = forward
	c.enums = enums
	c.Shadows.Seal()
	span.End("")
	return nil
}

func (c *Context) buildAll(forward, enums []meta.DefID, parent uint64) error {
	for _, id := range enums {
		if err := c.copyEnum(id); err != nil {
			return err
		}
		trace.Point(c.tracer, trace.ScopeType, c.Src.Type(id).FullName(), "enum", parent)
	}
	for _, id := range forward {
		td := c.Src.Type(id)
		if td == nil {
			return &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("selected definition %d", id)}
		}
		if err := c.buildSkeleton(id); err != nil {
			return err
		}
		trace.Point(c.tracer, trace.ScopeType, td.FullName(), "skeleton", parent)
	}
	return nil
}

type step struct {
	name string
	fn   func(Entry) error
}

// Attach runs pass 2. Each sub-pass completes for every type before the
// next starts, so constraints exist before signatures and every interface
// slot exists before implementations bind to it.
func (c *Context) Attach() error {
	if !c.Shadows.Sealed() {
		return ErrShadowMapOpen
	}
	steps := []step{
		{"constraints", c.attachConstraints},
		{"interfaces", c.attachInterfaces},
		{"constructors", c.attachConstructors},
		{"methods", c.attachMethods},
		{"implementations", c.attachImplementations},
		{"finalize", c.finalize},
	}
	for _, st := range steps {
		if err := c.runStep(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) runStep(st step) error {
	span := trace.Begin(c.tracer, trace.ScopePass, st.name, c.span)
	idx := c.timer.Begin(st.name)
	defer c.timer.End(idx, "")
	for _, orig := range c.forward {
		e, ok := c.Shadows.Lookup(orig)
		if !ok {
			err := fmt.Errorf("%s: %s has no shadow", st.name, c.Src.Type(orig).FullName())
			span.End("failed")
			return err
		}
		if err := st.fn(e); err != nil {
			trace.Failure(c.tracer, trace.ScopeType, c.Src.Type(orig).FullName(), err, span.ID())
			span.End("failed")
			return err
		}
		trace.Point(c.tracer, trace.ScopeType, c.Src.Type(orig).FullName(), st.name, span.ID())
	}
	span.End("")
	return nil
}

func (c *Context) fail(err error, orig meta.DefID, member string) error {
	var se *Error
	if errors.As(err, &se) {
		if se.Type == "" {
			se.Type = c.Src.Type(orig).FullName()
		}
		if se.Member == "" {
			se.Member = member
		}
		return err
	}
	return &Error{Err: err, Type: c.Src.Type(orig).FullName(), Member: member}
}

// selfField references a field of def through def's own instantiation.
func (c *Context) selfField(def meta.DefID, field meta.FieldID) meta.FieldRefID {
	fd := c.Dst.Field(field)
	return c.Dst.AddFieldRef(meta.FieldRef{
		Declaring: c.Dst.SelfRef(def),
		Name:      fd.Name,
		Type:      fd.Type,
		Def:       field,
	})
}
