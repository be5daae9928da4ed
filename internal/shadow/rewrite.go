package shadow

import (
	"fmt"

	"fortio.org/safecast"

	"shadowgen/internal/meta"
)

// Scope is the declaration context a source reference is rewritten in.
// Type-level generic parameters of OrigType map to the real parameters of
// ShadowType; method-level parameters of OrigMethod map to those of
// ShadowMethod.
type Scope struct {
	OrigType     meta.DefID
	ShadowType   meta.DefID
	OrigMethod   meta.MethodID
	ShadowMethod meta.MethodID
	// Bind substitutes parameters of an inherited declaration (an interface
	// reached through the implementation list) before the owner mapping.
	Bind *Binding
}

// Binding maps generic parameters of one declaration to source references
// that are themselves evaluated under Outer.
type Binding struct {
	Params map[meta.ParamID]meta.TypeID
	Outer  *Binding
}

// Rewriter translates source references into target references.
type Rewriter struct {
	src     *meta.Module
	dst     *meta.Module
	shadows *ShadowMap
	opts    Options
	scope   string
}

// NewRewriter creates a rewriter importing source definitions under scope.
func NewRewriter(src, dst *meta.Module, shadows *ShadowMap, opts Options, scope string) *Rewriter {
	return &Rewriter{src: src, dst: dst, shadows: shadows, opts: opts.WithDefaults(), scope: scope}
}

// Type rewrites ref so every shadowed definition it names is replaced by
// its shadow. Generic instances of forwarded heads receive the doubled
// argument list: real arguments first, shadow arguments second.
func (r *Rewriter) Type(sc Scope, ref meta.TypeID) (meta.TypeID, error) {
	return r.rewrite(sc, ref, false)
}

// Real rewrites ref without shadow substitution: definitions are imported
// from the source module while generic parameters still follow the scope.
func (r *Rewriter) Real(sc Scope, ref meta.TypeID) (meta.TypeID, error) {
	return r.rewrite(sc, ref, true)
}

func (r *Rewriter) rewrite(sc Scope, ref meta.TypeID, keepOriginal bool) (meta.TypeID, error) {
	if ref == meta.NoType {
		return meta.NoType, nil
	}
	tr, ok := r.src.Ref(ref)
	if !ok {
		return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source type %d", ref)}
	}
	switch tr.Kind {
	case meta.RefDef, meta.RefImport:
		head, _, err := r.head(tr, keepOriginal)
		return head, err

	case meta.RefGenericInst:
		htr, ok := r.src.Ref(tr.Elem)
		if !ok {
			return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("generic head %d", tr.Elem)}
		}
		head, forwarded, err := r.head(htr, keepOriginal)
		if err != nil {
			return meta.NoType, err
		}
		if forwarded {
			args := make([]meta.TypeID, 0, 2*len(tr.Args))
			for _, a := range tr.Args {
				ra, err := r.rewrite(sc, a, true)
				if err != nil {
					return meta.NoType, err
				}
				args = append(args, ra)
			}
			for _, a := range tr.Args {
				sh, err := r.rewrite(sc, a, false)
				if err != nil {
					return meta.NoType, err
				}
				args = append(args, sh)
			}
			return r.dst.Inst(head, args...), nil
		}
		args := make([]meta.TypeID, len(tr.Args))
		for i, a := range tr.Args {
			if args[i], err = r.rewrite(sc, a, keepOriginal); err != nil {
				return meta.NoType, err
			}
		}
		return r.dst.Inst(head, args...), nil

	case meta.RefGenericParam:
		return r.param(sc, tr.Param, keepOriginal)

	case meta.RefArray:
		elem, err := r.rewrite(sc, tr.Elem, keepOriginal)
		if err != nil {
			return meta.NoType, err
		}
		return r.dst.ArrayOf(elem), nil

	case meta.RefByRef:
		elem, err := r.rewrite(sc, tr.Elem, keepOriginal)
		if err != nil {
			return meta.NoType, err
		}
		return r.dst.ByRefOf(elem), nil
	}
	return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source type %d has kind %s", ref, tr.Kind)}
}

// head maps a non-generic source reference. forwarded reports whether the
// result names a forwarding shadow, whose instances need doubled arguments.
func (r *Rewriter) head(tr meta.TypeRef, keepOriginal bool) (meta.TypeID, bool, error) {
	switch tr.Kind {
	case meta.RefDef:
		if r.src.Type(tr.Def) == nil {
			return meta.NoType, false, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source definition %d", tr.Def)}
		}
		if !keepOriginal {
			if e, ok := r.shadowOf(tr.Def); ok {
				return r.dst.DefRef(e.Shadow), e.Kind == EntryForward, nil
			}
		}
		return r.dst.ImportRef(r.importDef(tr.Def)), false, nil
	case meta.RefImport:
		if tr.Import == meta.NoImport || int(tr.Import) >= len(r.src.Imports) {
			return meta.NoType, false, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source import %d", tr.Import)}
		}
		return r.dst.ImportRef(r.dst.Import(r.src.Imports[tr.Import])), false, nil
	}
	return meta.NoType, false, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("generic head of kind %s", tr.Kind)}
}

// shadowOf finds the shadow by structural name: shadow namespace, original
// name and original arity.
func (r *Rewriter) shadowOf(def meta.DefID) (Entry, bool) {
	e, ok := r.shadows.LookupKey(r.keyFor(r.src.Type(def)))
	if !ok || e.Original != def {
		return Entry{}, false
	}
	return e, true
}

func (r *Rewriter) keyFor(td *meta.TypeDef) string {
	return meta.QualifiedName(r.opts.ShadowNamespace(td.Namespace), td.Name, len(td.GenericParams))
}

// importDef turns a source definition into a target import.
func (r *Rewriter) importDef(def meta.DefID) meta.ImportID {
	td := r.src.Type(def)
	arity, err := safecast.Conv[uint32](len(td.GenericParams))
	if err != nil {
		panic(fmt.Errorf("import %s: %w", td.FullName(), err))
	}
	return r.dst.Import(meta.Import{
		Scope:     r.scope,
		Namespace: td.Namespace,
		Name:      td.Name,
		Arity:     arity,
		ValueType: td.IsValueType(),
		Interface: td.IsInterface(),
	})
}

func (r *Rewriter) param(sc Scope, p meta.ParamID, keepOriginal bool) (meta.TypeID, error) {
	if sc.Bind != nil {
		if bound, ok := sc.Bind.Params[p]; ok {
			outer := sc
			outer.Bind = sc.Bind.Outer
			return r.rewrite(outer, bound, keepOriginal)
		}
	}
	gp := r.src.Param(p)
	if gp == nil {
		return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source generic parameter %d", p)}
	}
	pos := int(gp.Position)
	switch gp.Owner.Kind {
	case meta.OwnerType:
		if gp.Owner.Type == sc.OrigType {
			if td := r.dst.Type(sc.ShadowType); td != nil {
				if pos < len(td.Slots) {
					return r.dst.ParamRef(td.Slots[pos].Real), nil
				}
				if pos < len(td.GenericParams) {
					return r.dst.ParamRef(td.GenericParams[pos]), nil
				}
			}
		}
	case meta.OwnerMethod:
		if gp.Owner.Method == sc.OrigMethod {
			if md := r.dst.Method(sc.ShadowMethod); md != nil && pos < len(md.GenericParams) {
				return r.dst.ParamRef(md.GenericParams[pos]), nil
			}
		}
	}
	return meta.NoType, r.unresolved(sc, gp)
}

func (r *Rewriter) unresolved(sc Scope, gp *meta.GenericParam) error {
	e := &Error{Err: ErrUnresolvedGenericParameter}
	if td := r.src.Type(sc.OrigType); td != nil {
		e.Type = td.FullName()
	}
	if md := r.src.Method(sc.OrigMethod); md != nil {
		e.Member = md.Name
	}
	owner := "?"
	switch gp.Owner.Kind {
	case meta.OwnerType:
		if td := r.src.Type(gp.Owner.Type); td != nil {
			owner = td.FullName()
		}
	case meta.OwnerMethod:
		owner = r.src.MethodName(gp.Owner.Method)
	}
	e.Detail = fmt.Sprintf("parameter %s of %s", gp.Name, owner)
	return e
}

// bindFor returns the binding for members of the definition declaring
// names: its generic parameters map to the arguments of declaring, which
// are evaluated under outer.
func (r *Rewriter) bindFor(outer *Binding, declaring meta.TypeID) *Binding {
	tr, ok := r.src.Ref(declaring)
	if !ok || tr.Kind != meta.RefGenericInst {
		return outer
	}
	def, ok := r.src.HeadDef(declaring)
	if !ok {
		return outer
	}
	td := r.src.Type(def)
	if len(td.GenericParams) != len(tr.Args) {
		return outer
	}
	b := &Binding{Params: make(map[meta.ParamID]meta.TypeID, len(tr.Args)), Outer: outer}
	for i, p := range td.GenericParams {
		b.Params[p] = tr.Args[i]
	}
	return b
}

// Member returns the scope members of declaring are rewritten in, filling
// a generated method. declaring is a source reference evaluated under sc;
// NoType stands for sc.OrigType itself.
func (r *Rewriter) Member(sc Scope, declaring meta.TypeID, orig, shadow meta.MethodID) Scope {
	out := sc
	if declaring != meta.NoType {
		out.Bind = r.bindFor(sc.Bind, declaring)
	}
	out.OrigMethod = orig
	out.ShadowMethod = shadow
	return out
}

// RealSelf is the original type instantiated with the real parameters of
// the generated definition def: the type of the held instance.
func (r *Rewriter) RealSelf(orig, def meta.DefID) meta.TypeID {
	head := r.dst.ImportRef(r.importDef(orig))
	td := r.dst.Type(def)
	if td == nil || len(td.Slots) == 0 {
		return head
	}
	args := make([]meta.TypeID, len(td.Slots))
	for i, s := range td.Slots {
		args[i] = r.dst.ParamRef(s.Real)
	}
	return r.dst.Inst(head, args...)
}

// ShadowSelf is the shadow of orig instantiated with all generic parameters
// of def, which must carry the same doubled list as the shadow.
func (r *Rewriter) ShadowSelf(shadow, def meta.DefID) meta.TypeID {
	td := r.dst.Type(def)
	head := r.dst.DefRef(shadow)
	if td == nil || len(td.GenericParams) == 0 {
		return head
	}
	args := make([]meta.TypeID, len(td.GenericParams))
	for i, p := range td.GenericParams {
		args[i] = r.dst.ParamRef(p)
	}
	return r.dst.Inst(head, args...)
}

// Retarget verifies that a target reference only mentions generic
// parameters owned by the scope's shadow type or shadow method.
func (r *Rewriter) Retarget(sc Scope, ref meta.TypeID) (meta.TypeID, error) {
	if ref == meta.NoType {
		return ref, nil
	}
	tr, ok := r.dst.Ref(ref)
	if !ok {
		return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("target type %d", ref)}
	}
	switch tr.Kind {
	case meta.RefDef, meta.RefImport:
		return ref, nil
	case meta.RefGenericInst:
		if _, err := r.Retarget(sc, tr.Elem); err != nil {
			return meta.NoType, err
		}
		for _, a := range tr.Args {
			if _, err := r.Retarget(sc, a); err != nil {
				return meta.NoType, err
			}
		}
		return ref, nil
	case meta.RefArray, meta.RefByRef:
		if _, err := r.Retarget(sc, tr.Elem); err != nil {
			return meta.NoType, err
		}
		return ref, nil
	case meta.RefGenericParam:
		gp := r.dst.Param(tr.Param)
		if gp != nil {
			if gp.Owner.Kind == meta.OwnerType && gp.Owner.Type == sc.ShadowType {
				return ref, nil
			}
			if gp.Owner.Kind == meta.OwnerMethod && sc.ShadowMethod != meta.NoMethod && gp.Owner.Method == sc.ShadowMethod {
				return ref, nil
			}
		}
		e := &Error{Err: ErrUnresolvedGenericParameter, Detail: r.dst.TypeName(ref)}
		if td := r.dst.Type(sc.ShadowType); td != nil {
			e.Type = td.FullName()
		}
		return meta.NoType, e
	}
	return meta.NoType, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("target type %d has kind %s", ref, tr.Kind)}
}
