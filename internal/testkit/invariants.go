package testkit

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"shadowgen/internal/meta"
)

// CheckShadowInvariants verifies the structural guarantees of a woven
// module against its source. pairs maps every forwarded original to its
// shadow; namespace is the shadow namespace prefix.
//  1. every original has exactly one shadow with the same short name in the
//     prefixed namespace
//  2. shadows record one generic slot per original parameter
//  3. a shadow's base is the shadow of the original base when that base is
//     forwarded, and System.Object when the original has none
//  4. every generic parameter mentioned in a shadow's signatures belongs to
//     the shadow or to the method using it
func CheckShadowInvariants(src, dst *meta.Module, pairs map[meta.DefID]meta.DefID, namespace string) error {
	if src == nil || dst == nil {
		return errors.New("nil module")
	}
	var errs []error
	for orig, sh := range pairs {
		od, sd := src.Type(orig), dst.Type(sh)
		if od == nil || sd == nil {
			errs = append(errs, fmt.Errorf("pair %d->%d: missing definition", orig, sh))
			continue
		}
		if err := checkName(od, sd, namespace); err != nil {
			errs = append(errs, err)
		}
		if err := checkSlots(dst, od, sd); err != nil {
			errs = append(errs, err)
		}
		if err := checkBase(src, dst, od, sd, pairs); err != nil {
			errs = append(errs, err)
		}
		if err := checkClosure(dst, sh); err != nil {
			errs = append(errs, err)
		}
	}
	if err := checkUnique(dst, pairs); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkName(od, sd *meta.TypeDef, namespace string) error {
	want := namespace
	if od.Namespace != "" {
		want += "." + od.Namespace
	}
	if sd.Name != od.Name || sd.Namespace != want {
		return fmt.Errorf("shadow of %s: got=%s.%s want=%s.%s", od.FullName(), sd.Namespace, sd.Name, want, od.Name)
	}
	return nil
}

func checkSlots(dst *meta.Module, od, sd *meta.TypeDef) error {
	if len(sd.Slots) != len(od.GenericParams) {
		return fmt.Errorf("shadow of %s: slots got=%d want=%d", od.FullName(), len(sd.Slots), len(od.GenericParams))
	}
	if len(sd.GenericParams) != 2*len(od.GenericParams) {
		return fmt.Errorf("shadow of %s: parameters got=%d want=%d", od.FullName(), len(sd.GenericParams), 2*len(od.GenericParams))
	}
	for i, s := range sd.Slots {
		rp, wp := dst.Param(s.Real), dst.Param(s.Witness)
		if rp == nil || wp == nil {
			return fmt.Errorf("shadow of %s: slot %d has unknown parameters", od.FullName(), i)
		}
		pos, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		if rp.Position != pos {
			return fmt.Errorf("shadow of %s: real parameter %d at position got=%d want=%d", od.FullName(), i, rp.Position, pos)
		}
	}
	return nil
}

func checkBase(src, dst *meta.Module, od, sd *meta.TypeDef, pairs map[meta.DefID]meta.DefID) error {
	if od.IsInterface() {
		if sd.Base != meta.NoType {
			return fmt.Errorf("shadow of interface %s has a base", od.FullName())
		}
		return nil
	}
	if od.Base == meta.NoType {
		if sd.Base != dst.Object() {
			return fmt.Errorf("shadow of %s: base got=%s want=System.Object", od.FullName(), dst.TypeName(sd.Base))
		}
		return nil
	}
	obase, ok := src.HeadDef(od.Base)
	if !ok {
		return nil
	}
	want, forwarded := pairs[obase]
	if !forwarded {
		return nil
	}
	got, ok := dst.HeadDef(sd.Base)
	if !ok || got != want {
		return fmt.Errorf("shadow of %s: base got=%s want shadow of %s", od.FullName(), dst.TypeName(sd.Base), src.Type(obase).FullName())
	}
	return nil
}

func checkClosure(dst *meta.Module, def meta.DefID) error {
	td := dst.Type(def)
	for _, m := range td.Methods {
		md := dst.Method(m)
		refs := []meta.TypeID{md.Return}
		for _, p := range md.Params {
			refs = append(refs, p.Type)
		}
		for _, r := range refs {
			if err := ownedParams(dst, r, def, m); err != nil {
				return fmt.Errorf("%s: %w", dst.MethodName(m), err)
			}
		}
	}
	for _, f := range td.Fields {
		if err := ownedParams(dst, dst.Field(f).Type, def, meta.NoMethod); err != nil {
			return fmt.Errorf("%s::%s: %w", td.FullName(), dst.Field(f).Name, err)
		}
	}
	return nil
}

func ownedParams(m *meta.Module, id meta.TypeID, def meta.DefID, method meta.MethodID) error {
	r, ok := m.Ref(id)
	if !ok {
		return nil
	}
	switch r.Kind {
	case meta.RefGenericParam:
		gp := m.Param(r.Param)
		if gp == nil {
			return fmt.Errorf("unknown parameter %d", r.Param)
		}
		if gp.Owner.Kind == meta.OwnerType && gp.Owner.Type == def {
			return nil
		}
		if gp.Owner.Kind == meta.OwnerMethod && method != meta.NoMethod && gp.Owner.Method == method {
			return nil
		}
		return fmt.Errorf("foreign parameter %s", m.TypeName(id))
	case meta.RefGenericInst:
		for _, a := range r.Args {
			if err := ownedParams(m, a, def, method); err != nil {
				return err
			}
		}
	case meta.RefArray, meta.RefByRef:
		return ownedParams(m, r.Elem, def, method)
	}
	return nil
}

func checkUnique(dst *meta.Module, pairs map[meta.DefID]meta.DefID) error {
	seen := make(map[string]meta.DefID, len(pairs))
	for _, sh := range pairs {
		name := dst.Type(sh).FullName()
		if prev, dup := seen[name]; dup && prev != sh {
			return fmt.Errorf("two shadows named %s", name)
		}
		seen[name] = sh
	}
	return nil
}

// CheckBaseOrder verifies that every selected type follows its selected
// base in order.
func CheckBaseOrder(m *meta.Module, order []meta.DefID) error {
	pos := make(map[meta.DefID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for i, id := range order {
		base, ok := m.HeadDef(m.Type(id).Base)
		if !ok {
			continue
		}
		if j, selected := pos[base]; selected && j >= i {
			return fmt.Errorf("%s at %d precedes its base %s at %d", m.Type(id).FullName(), i, m.Type(base).FullName(), j)
		}
	}
	return nil
}
