package meta

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the structural invariants of a module. Generic instances
// must supply as many arguments as their head declares. Members and generic
// parameters must point back at their owner. Every handle, including
// instruction operands, must fall inside its arena or body.
func Validate(m *Module) error {
	v := &validator{m: m}
	for i := 1; i < len(m.Refs); i++ {
		v.checkRef(TypeID(i))
	}
	for i := 1; i < len(m.Defs); i++ {
		v.checkType(DefID(i))
	}
	for i := 1; i < len(m.Params); i++ {
		v.checkParam(ParamID(i))
	}
	for i := 1; i < len(m.Methods); i++ {
		v.checkSignature(MethodID(i))
		v.checkMethod(MethodID(i))
	}
	for i := 1; i < len(m.Fields); i++ {
		if f := &m.Fields[i]; !v.validRef(f.Type) {
			v.fail("field %s: type %d out of range", f.Name, f.Type)
		}
	}
	for i := 1; i < len(m.MethodRefs); i++ {
		v.checkMethodRef(MethodRefID(i))
	}
	for i := 1; i < len(m.FieldRefs); i++ {
		fr := &m.FieldRefs[i]
		if !v.validRef(fr.Declaring) || !v.validRef(fr.Type) {
			v.fail("field reference %s: type out of range", fr.Name)
		}
		if fr.Def != NoField && v.m.Field(fr.Def) == nil {
			v.fail("field reference %s: unknown definition %d", fr.Name, fr.Def)
		}
	}
	return errors.Join(v.errs...)
}

type validator struct {
	m    *Module
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validRef(id TypeID) bool {
	return id != NoType && int(id) < len(v.m.Refs)
}

func (v *validator) checkRef(id TypeID) {
	r := v.m.Refs[id]
	switch r.Kind {
	case RefDef:
		if v.m.Type(r.Def) == nil {
			v.fail("type %d: unknown definition %d", id, r.Def)
		}
	case RefImport:
		if r.Import == NoImport || int(r.Import) >= len(v.m.Imports) {
			v.fail("type %d: unknown import %d", id, r.Import)
		}
	case RefGenericParam:
		if v.m.Param(r.Param) == nil {
			v.fail("type %d: unknown generic parameter %d", id, r.Param)
		}
	case RefGenericInst:
		if !v.validRef(r.Elem) {
			v.fail("type %d: generic instance without head", id)
			return
		}
		for _, a := range r.Args {
			if !v.validRef(a) {
				v.fail("type %d: generic argument %d out of range", id, a)
			}
		}
		want, ok := v.arity(r.Elem)
		if ok && want != len(r.Args) {
			v.fail("type %s: %d generic arguments for arity %d", v.m.TypeName(id), len(r.Args), want)
		}
	case RefArray, RefByRef:
		if !v.validRef(r.Elem) {
			v.fail("type %d: %s without element", id, r.Kind)
		}
	default:
		v.fail("type %d: invalid reference kind %s", id, r.Kind)
	}
}

// checkType verifies that every member handle of a definition is in range
// and declared by it.
func (v *validator) checkType(def DefID) {
	td := &v.m.Defs[def]
	name := td.FullName()
	if td.Base != NoType && !v.validRef(td.Base) {
		v.fail("%s: base %d out of range", name, td.Base)
	}
	for _, itf := range td.Interfaces {
		if !v.validRef(itf) {
			v.fail("%s: interface %d out of range", name, itf)
		}
	}
	for _, p := range td.GenericParams {
		if gp := v.m.Param(p); gp == nil || gp.Owner.Kind != OwnerType || gp.Owner.Type != def {
			v.fail("%s: generic parameter %d is not owned by the type", name, p)
		}
	}
	for _, sl := range td.Slots {
		if !slices.Contains(td.GenericParams, sl.Real) || !slices.Contains(td.GenericParams, sl.Witness) {
			v.fail("%s: generic slot outside the parameter list", name)
		}
	}
	for _, id := range td.Methods {
		if md := v.m.Method(id); md == nil || md.Declaring != def {
			v.fail("%s: method %d is not declared by the type", name, id)
		}
	}
	for _, id := range td.Fields {
		if f := v.m.Field(id); f == nil || f.Declaring != def {
			v.fail("%s: field %d is not declared by the type", name, id)
		}
	}
	for _, id := range td.Properties {
		p := v.m.Property(id)
		if p == nil || p.Declaring != def {
			v.fail("%s: property %d is not declared by the type", name, id)
			continue
		}
		if !v.validRef(p.Type) {
			v.fail("%s: property %s type out of range", name, p.Name)
		}
		for _, acc := range []MethodID{p.Getter, p.Setter} {
			if acc == NoMethod {
				continue
			}
			if md := v.m.Method(acc); md == nil || md.Declaring != def {
				v.fail("%s: accessor %d of property %s is not declared by the type", name, acc, p.Name)
			}
		}
	}
}

// checkSignature verifies the owner and signature types of a method before
// its name is rendered anywhere.
func (v *validator) checkSignature(id MethodID) {
	md := &v.m.Methods[id]
	if v.m.Type(md.Declaring) == nil {
		v.fail("method %s: unknown declaring type %d", md.Name, md.Declaring)
	}
	if !v.validRef(md.Return) {
		v.fail("method %s: return type %d out of range", md.Name, md.Return)
	}
	for i, p := range md.Params {
		if !v.validRef(p.Type) {
			v.fail("method %s: parameter %d type %d out of range", md.Name, i, p.Type)
		}
	}
	for _, ov := range md.Overrides {
		if v.m.MethodRef(ov) == nil {
			v.fail("method %s: unknown override %d", md.Name, ov)
		}
	}
}

func (v *validator) checkMethodRef(id MethodRefID) {
	mr := &v.m.MethodRefs[id]
	if !v.validRef(mr.Declaring) || !v.validRef(mr.Return) {
		v.fail("method reference %s: type out of range", mr.Name)
	}
	for _, t := range slices.Concat(mr.Params, mr.GenericArgs) {
		if !v.validRef(t) {
			v.fail("method reference %s: type %d out of range", mr.Name, t)
		}
	}
	if mr.Def != NoMethod && v.m.Method(mr.Def) == nil {
		v.fail("method reference %s: unknown definition %d", mr.Name, mr.Def)
	}
}

func (v *validator) arity(head TypeID) (int, bool) {
	r, ok := v.m.Ref(head)
	if !ok {
		return 0, false
	}
	switch r.Kind {
	case RefDef:
		if td := v.m.Type(r.Def); td != nil {
			return len(td.GenericParams), true
		}
	case RefImport:
		if int(r.Import) < len(v.m.Imports) {
			return int(v.m.Imports[r.Import].Arity), true
		}
	}
	return 0, false
}

func (v *validator) checkParam(id ParamID) {
	gp := v.m.Params[id]
	var list []ParamID
	switch gp.Owner.Kind {
	case OwnerType:
		td := v.m.Type(gp.Owner.Type)
		if td == nil {
			v.fail("generic parameter %s: unknown owner type %d", gp.Name, gp.Owner.Type)
			return
		}
		list = td.GenericParams
	case OwnerMethod:
		md := v.m.Method(gp.Owner.Method)
		if md == nil {
			v.fail("generic parameter %s: unknown owner method %d", gp.Name, gp.Owner.Method)
			return
		}
		list = md.GenericParams
	default:
		v.fail("generic parameter %s: no owner", gp.Name)
		return
	}
	if int(gp.Position) >= len(list) || list[gp.Position] != id {
		v.fail("generic parameter %s: position %d does not match its owner", gp.Name, gp.Position)
	}
	for _, c := range gp.Constraints {
		if !v.validRef(c) {
			v.fail("generic parameter %s: constraint %d out of range", gp.Name, c)
		}
	}
}

func (v *validator) checkMethod(id MethodID) {
	md := &v.m.Methods[id]
	if md.Body == nil {
		return
	}
	if md.IsAbstract() {
		v.fail("%s: abstract method with a body", v.m.MethodName(id))
	}
	args := len(md.Params)
	if !md.IsStatic() {
		args++
	}
	n := len(md.Body.Instrs)
	for i, in := range md.Body.Instrs {
		if in.Kind != in.Op.Operand() {
			v.fail("%s IL_%04x: operand kind mismatch for %s", v.m.MethodName(id), i, in.Op)
			continue
		}
		switch in.Kind {
		case OperandArg:
			if int(in.Index) >= args {
				v.fail("%s IL_%04x: argument %d out of range", v.m.MethodName(id), i, in.Index)
			}
		case OperandLocal:
			if int(in.Index) >= len(md.Body.Locals) {
				v.fail("%s IL_%04x: local %d out of range", v.m.MethodName(id), i, in.Index)
			}
		case OperandBranch:
			if int(in.Index) >= n {
				v.fail("%s IL_%04x: branch target %d out of range", v.m.MethodName(id), i, in.Index)
			}
		case OperandMethod:
			if v.m.MethodRef(in.Method) == nil {
				v.fail("%s IL_%04x: unknown method reference %d", v.m.MethodName(id), i, in.Method)
			}
		case OperandField:
			if v.m.FieldRef(in.Field) == nil {
				v.fail("%s IL_%04x: unknown field reference %d", v.m.MethodName(id), i, in.Field)
			}
		case OperandType:
			if !v.validRef(in.Type) {
				v.fail("%s IL_%04x: unknown type %d", v.m.MethodName(id), i, in.Type)
			}
		}
	}
	if n == 0 || md.Body.Instrs[n-1].Op != OpRet {
		v.fail("%s: body does not end with ret", v.m.MethodName(id))
	}
}
