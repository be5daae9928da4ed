package shadow

import (
	"fmt"

	"fortio.org/safecast"

	"shadowgen/internal/meta"
)

// MethodTarget builds the reference a forwarding body calls: the original
// method m on the original declaring type. declaring is a source reference
// evaluated under sc (NoType for sc.OrigType itself); sc.ShadowMethod is the
// generated method whose generic parameters instantiate a generic m.
func (r *Rewriter) MethodTarget(sc Scope, m meta.MethodID, declaring meta.TypeID) (meta.MethodRefID, error) {
	om := r.src.Method(m)
	if om == nil {
		return meta.NoMethodRef, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source method %d", m)}
	}
	var decl meta.TypeID
	if declaring == meta.NoType {
		decl = r.RealSelf(sc.OrigType, sc.ShadowType)
	} else {
		var err error
		if decl, err = r.Real(sc, declaring); err != nil {
			return meta.NoMethodRef, err
		}
	}
	ms := r.Member(sc, declaring, m, sc.ShadowMethod)
	ret, err := r.Real(ms, om.Return)
	if err != nil {
		return meta.NoMethodRef, err
	}
	params := make([]meta.TypeID, len(om.Params))
	for i, p := range om.Params {
		if params[i], err = r.Real(ms, p.Type); err != nil {
			return meta.NoMethodRef, err
		}
	}
	ref := meta.MethodRef{
		Declaring: decl,
		Name:      om.Name,
		HasThis:   !om.IsStatic(),
		Return:    ret,
		Params:    params,
		Def:       meta.NoMethod,
	}
	if n := len(om.GenericParams); n > 0 {
		md := r.dst.Method(sc.ShadowMethod)
		if md == nil || len(md.GenericParams) != n {
			return meta.NoMethodRef, r.unresolved(ms, r.src.Param(om.GenericParams[0]))
		}
		if ref.GenericArity, err = safecast.Conv[uint32](n); err != nil {
			return meta.NoMethodRef, err
		}
		ref.GenericArgs = make([]meta.TypeID, n)
		for i, p := range md.GenericParams {
			ref.GenericArgs[i] = r.dst.ParamRef(p)
		}
	}
	return r.dst.AddMethodRef(ref), nil
}

// Reinstantiate rewrites a source method reference used inside a body. A
// generic reference (open or instantiated) is rebuilt against the target
// graph: open method parameters bind to the current shadow method.
// Non-generic references keep naming the original definitions.
func (r *Rewriter) Reinstantiate(sc Scope, id meta.MethodRefID) (meta.MethodRefID, error) {
	mr := r.src.MethodRef(id)
	if mr == nil {
		return meta.NoMethodRef, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source method reference %d", id)}
	}
	open := mr.GenericArity > 0 && len(mr.GenericArgs) == 0
	generic := open || len(mr.GenericArgs) > 0
	// The signature names mr.Def's own parameters: bound references see
	// them through their arguments, open ones through the shadow method.
	sig := sc
	if def := r.src.Method(mr.Def); def != nil {
		switch {
		case open:
			sig.OrigMethod = mr.Def
		case len(mr.GenericArgs) > 0 && len(mr.GenericArgs) == len(def.GenericParams):
			bind := &Binding{Params: make(map[meta.ParamID]meta.TypeID, len(def.GenericParams)), Outer: sc.Bind}
			for i, p := range def.GenericParams {
				bind.Params[p] = mr.GenericArgs[i]
			}
			sig.Bind = bind
		}
	}
	decl, err := r.rewrite(sc, mr.Declaring, !generic)
	if err != nil {
		return meta.NoMethodRef, err
	}
	ret, err := r.rewrite(sig, mr.Return, !generic)
	if err != nil {
		return meta.NoMethodRef, err
	}
	params := make([]meta.TypeID, len(mr.Params))
	for i, p := range mr.Params {
		if params[i], err = r.rewrite(sig, p, !generic); err != nil {
			return meta.NoMethodRef, err
		}
	}
	out := meta.MethodRef{
		Declaring:    decl,
		Name:         mr.Name,
		HasThis:      mr.HasThis,
		Return:       ret,
		Params:       params,
		GenericArity: mr.GenericArity,
	}
	switch {
	case len(mr.GenericArgs) > 0:
		out.GenericArgs = make([]meta.TypeID, len(mr.GenericArgs))
		for i, a := range mr.GenericArgs {
			if out.GenericArgs[i], err = r.Type(sc, a); err != nil {
				return meta.NoMethodRef, err
			}
		}
	case open:
		md := r.dst.Method(sc.ShadowMethod)
		if md == nil || len(md.GenericParams) != int(mr.GenericArity) {
			return meta.NoMethodRef, &Error{
				Err:    ErrUnresolvedGenericParameter,
				Member: mr.Name,
				Detail: fmt.Sprintf("open reference with %d method parameters outside a matching generic method", mr.GenericArity),
			}
		}
		out.GenericArgs = make([]meta.TypeID, len(md.GenericParams))
		for i, p := range md.GenericParams {
			out.GenericArgs[i] = r.dst.ParamRef(p)
		}
	}
	return r.dst.AddMethodRef(out), nil
}

// FieldTarget rewrites a source field reference. Fields always resolve on
// the original declaring type.
func (r *Rewriter) FieldTarget(sc Scope, id meta.FieldRefID) (meta.FieldRefID, error) {
	fr := r.src.FieldRef(id)
	if fr == nil {
		return meta.NoFieldRef, &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("source field reference %d", id)}
	}
	decl, err := r.Real(sc, fr.Declaring)
	if err != nil {
		return meta.NoFieldRef, err
	}
	t, err := r.Real(sc, fr.Type)
	if err != nil {
		return meta.NoFieldRef, err
	}
	return r.dst.AddFieldRef(meta.FieldRef{Declaring: decl, Name: fr.Name, Type: t}), nil
}

// Body copies a source body into the target graph, rewriting every operand
// and local.
func (r *Rewriter) Body(sc Scope, body *meta.Body) (*meta.Body, error) {
	if body == nil {
		return nil, nil
	}
	out := &meta.Body{
		Locals:     make([]meta.TypeID, len(body.Locals)),
		Instrs:     make([]meta.Instr, len(body.Instrs)),
		InitLocals: body.InitLocals,
	}
	var err error
	for i, l := range body.Locals {
		if out.Locals[i], err = r.Type(sc, l); err != nil {
			return nil, err
		}
	}
	for i, in := range body.Instrs {
		switch in.Kind {
		case meta.OperandMethod:
			in.Method, err = r.Reinstantiate(sc, in.Method)
		case meta.OperandField:
			in.Field, err = r.FieldTarget(sc, in.Field)
		case meta.OperandType:
			in.Type, err = r.Type(sc, in.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("IL_%04x %s: %w", i, in.Op, err)
		}
		out.Instrs[i] = in
	}
	return out, nil
}
