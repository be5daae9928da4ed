package shadow

import (
	"fmt"

	"shadowgen/internal/meta"
)

// ifaceLink is one source interface reached from a type's implementation
// list, directly or through other interfaces.
type ifaceLink struct {
	def meta.DefID
	// ref names the interface as written in the implementation list; NoType
	// for the root type itself.
	ref meta.TypeID
	// refBind evaluates ref; bind evaluates the interface's members.
	refBind *Binding
	bind    *Binding
}

// interfaceClosure walks the implementation lists of root depth-first.
// Imported interfaces are skipped; each definition appears once.
func (c *Context) interfaceClosure(root meta.DefID, includeSelf bool) []ifaceLink {
	var out []ifaceLink
	seen := map[meta.DefID]bool{root: true}
	if includeSelf {
		out = append(out, ifaceLink{def: root})
	}
	var walk func(def meta.DefID, bind *Binding)
	walk = func(def meta.DefID, bind *Binding) {
		for _, itf := range c.Src.Type(def).Interfaces {
			idef, ok := c.Src.HeadDef(itf)
			if !ok || seen[idef] {
				continue
			}
			seen[idef] = true
			link := ifaceLink{def: idef, ref: itf, refBind: bind, bind: c.rw.bindFor(bind, itf)}
			out = append(out, link)
			walk(idef, link.bind)
		}
	}
	walk(root, nil)
	return out
}

// linkTypes returns the shadow and real forms of link as seen from the
// generated definition in base.ShadowType.
func (c *Context) linkTypes(base Scope, link ifaceLink, ie Entry) (meta.TypeID, meta.TypeID, error) {
	if link.ref == meta.NoType {
		return c.rw.ShadowSelf(ie.Shadow, base.ShadowType), c.rw.RealSelf(link.def, base.ShadowType), nil
	}
	sc := base
	sc.Bind = link.refBind
	shadowRef, err := c.rw.Type(sc, link.ref)
	if err != nil {
		return meta.NoType, meta.NoType, err
	}
	realRef, err := c.rw.Real(sc, link.ref)
	if err != nil {
		return meta.NoType, meta.NoType, err
	}
	return shadowRef, realRef, nil
}

// attachImplementations binds interface members. Class shadows map every
// shadowed interface slot to an implementation, synthesizing an explicit
// forwarder when none is public; interface fake implementations implement
// the whole closure.
func (c *Context) attachImplementations(e Entry) error {
	od := c.Src.Type(e.Original)
	if od.IsInterface() {
		if e.FakeImpl == meta.NoDef {
			return nil
		}
		h := c.heldOf(e.FakeImpl, e.FakeImplHeld, false)
		return c.implementClosure(e, Scope{OrigType: e.Original, ShadowType: e.FakeImpl}, h, true)
	}
	h := c.heldOf(e.Shadow, e.ForwardField, od.IsValueType())
	return c.implementClosure(e, Scope{OrigType: e.Original, ShadowType: e.Shadow}, h, false)
}

// implementClosure binds every shadowed interface of the closure of
// e.Original on base.ShadowType. With explicit set every member gets its
// own forwarder (fake implementation); otherwise existing public
// counterparts are reused.
func (c *Context) implementClosure(e Entry, base Scope, h held, explicit bool) error {
	for _, link := range c.interfaceClosure(e.Original, explicit) {
		ie, ok := c.Shadows.Lookup(link.def)
		if !ok || ie.Kind != EntryForward {
			continue
		}
		shadowRef, realRef, err := c.linkTypes(base, link, ie)
		if err != nil {
			return c.fail(err, e.Original, c.Src.Type(link.def).FullName())
		}
		idef := c.Src.Type(link.def)
		for _, m := range idef.Methods {
			om := c.Src.Method(m)
			if !forwardable(om) || om.IsStatic() {
				continue
			}
			if err := c.implementMember(e, base, link, shadowRef, ie, m, h, explicit); err != nil {
				return c.fail(err, e.Original, om.Name)
			}
		}
		if ie.Holder != meta.NoMethod {
			c.implementHolder(base.ShadowType, ie, shadowRef, realRef, h)
		}
	}
	return nil
}

func (c *Context) implementMember(e Entry, base Scope, link ifaceLink, shadowRef meta.TypeID, ie Entry, m meta.MethodID, h held, explicit bool) error {
	om := c.Src.Method(m)
	slot, err := c.correspondingSlot(ie, m)
	if err != nil {
		return err
	}
	member := base
	member.Bind = link.bind

	var impl meta.MethodID
	if !explicit {
		if impl, err = c.findImplementation(member, m); err != nil {
			return err
		}
		if impl == meta.NoMethod {
			inherited, err := c.inheritsImplementation(member, e.Original, m)
			if err != nil || inherited {
				return err
			}
		}
	}
	if impl == meta.NoMethod {
		name, vis := om.Name, meta.VisPublic
		if link.ref != meta.NoType || !explicit {
			name, vis = c.Src.Type(link.def).FullName()+"."+om.Name, meta.VisPrivate
		}
		flags := meta.MethodVirtual | meta.MethodFinal | meta.MethodNewSlot | meta.MethodHideBySig | om.Flags&meta.MethodSpecialName
		if impl, _, err = c.declare(member, m, name, vis, flags); err != nil {
			return err
		}
		sc := base
		sc.Bind = link.refBind
		sc.ShadowMethod = impl
		body, err := c.synthesizeForward(forward{scope: sc, declaring: link.ref, method: m, held: h})
		if err != nil {
			return err
		}
		c.Dst.Method(impl).Body = body
	} else if md := c.Dst.Method(impl); !md.IsVirtual() {
		md.Flags |= meta.MethodVirtual | meta.MethodFinal | meta.MethodNewSlot
	}

	slotScope := member
	slotScope.OrigMethod = m
	slotScope.ShadowMethod = impl
	ref, err := c.slotRef(slotScope, shadowRef, om, slot)
	if err != nil {
		return err
	}
	md := c.Dst.Method(impl)
	md.Overrides = append(md.Overrides, ref)
	return nil
}

// correspondingSlot finds the counterpart of interface method m on the
// interface shadow: same name, parameter count, generic arity and
// rewritten parameter types.
func (c *Context) correspondingSlot(ie Entry, m meta.MethodID) (meta.MethodID, error) {
	om := c.Src.Method(m)
	var found []meta.MethodID
	for _, cand := range c.Dst.Type(ie.Shadow).Methods {
		ok, err := c.sameSignature(Scope{OrigType: ie.Original, ShadowType: ie.Shadow}, m, cand)
		if err != nil {
			return meta.NoMethod, err
		}
		if ok {
			found = append(found, cand)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return meta.NoMethod, &Error{Err: ErrMissingMemberMatch, Type: c.Src.Type(ie.Original).FullName(), Member: om.Name}
	default:
		return meta.NoMethod, &Error{
			Err:    ErrAmbiguousMemberMatch,
			Type:   c.Src.Type(ie.Original).FullName(),
			Member: om.Name,
			Detail: fmt.Sprintf("%d candidates", len(found)),
		}
	}
}

// findImplementation looks for the public counterpart of interface method
// m already declared on sc.ShadowType. sc.Bind evaluates m's declaring
// interface.
func (c *Context) findImplementation(sc Scope, m meta.MethodID) (meta.MethodID, error) {
	var found []meta.MethodID
	for _, cand := range c.Dst.Type(sc.ShadowType).Methods {
		md := c.Dst.Method(cand)
		if !md.IsPublic() || md.IsStatic() || md.Body == nil {
			continue
		}
		ok, err := c.sameSignature(sc, m, cand)
		if err != nil {
			return meta.NoMethod, err
		}
		if ok {
			found = append(found, cand)
		}
	}
	switch len(found) {
	case 0:
		return meta.NoMethod, nil
	case 1:
		return found[0], nil
	default:
		return meta.NoMethod, &Error{
			Err:    ErrAmbiguousMemberMatch,
			Member: c.Src.Method(m).Name,
			Detail: fmt.Sprintf("%d implementations", len(found)),
		}
	}
}

// sameSignature compares source method m, rewritten under sc, with the
// target method cand.
func (c *Context) sameSignature(sc Scope, m, cand meta.MethodID) (bool, error) {
	om := c.Src.Method(m)
	cm := c.Dst.Method(cand)
	if cm.Name != om.Name || len(cm.Params) != len(om.Params) || len(cm.GenericParams) != len(om.GenericParams) {
		return false, nil
	}
	sc.OrigMethod = m
	sc.ShadowMethod = cand
	for i, p := range om.Params {
		t, err := c.rw.Type(sc, p.Type)
		if err != nil {
			return false, err
		}
		if t != cm.Params[i].Type {
			return false, nil
		}
	}
	return true, nil
}

// inheritsImplementation reports whether the shadow of a forwarded base of
// orig declares a public forwarding method whose signature matches interface
// method m rewritten under sc. Candidates written in terms of the base
// shadow's own generic parameters never match, leaving the member to an
// explicit forwarder.
func (c *Context) inheritsImplementation(sc Scope, orig meta.DefID, m meta.MethodID) (bool, error) {
	td := c.Src.Type(orig)
	for range len(c.Src.Defs) {
		bdef, ok := c.Src.HeadDef(td.Base)
		if !ok {
			return false, nil
		}
		if be, ok := c.Shadows.Lookup(bdef); ok && be.Kind == EntryForward {
			for _, cand := range c.Dst.Type(be.Shadow).Methods {
				md := c.Dst.Method(cand)
				if !md.IsPublic() || md.IsStatic() || md.Body == nil {
					continue
				}
				same, err := c.sameSignature(sc, m, cand)
				if err != nil || same {
					return same, err
				}
			}
		}
		td = c.Src.Type(bdef)
	}
	return false, nil
}

// slotRef references the interface shadow's slot through shadowRef.
func (c *Context) slotRef(sc Scope, shadowRef meta.TypeID, om *meta.Method, slot meta.MethodID) (meta.MethodRefID, error) {
	ret, err := c.rw.Type(sc, om.Return)
	if err != nil {
		return meta.NoMethodRef, err
	}
	params := make([]meta.TypeID, len(om.Params))
	for i, p := range om.Params {
		if params[i], err = c.rw.Type(sc, p.Type); err != nil {
			return meta.NoMethodRef, err
		}
	}
	sm := c.Dst.Method(slot)
	return c.Dst.AddMethodRef(meta.MethodRef{
		Declaring:    shadowRef,
		Name:         sm.Name,
		HasThis:      true,
		Return:       ret,
		Params:       params,
		GenericArity: uint32(len(sm.GenericParams)),
		Def:          slot,
	}), nil
}

// implementHolder adds the getter implementing interface ie's holder
// accessor on def, returning the held instance.
func (c *Context) implementHolder(def meta.DefID, ie Entry, shadowRef, realRef meta.TypeID, h held) {
	name := getterName(ie.HolderName)
	for _, m := range c.Dst.Type(def).Methods {
		if c.Dst.Method(m).Name == name {
			return
		}
	}
	b := meta.NewBodyBuilder()
	b.Arg(meta.OpLdarg, 0)
	b.Field(meta.OpLdfld, h.field)
	if h.valueType {
		b.Type(meta.OpBox, h.typ)
	}
	b.Op(meta.OpRet)
	body, _ := b.Finish()
	ref := c.Dst.AddMethodRef(meta.MethodRef{
		Declaring: shadowRef,
		Name:      name,
		HasThis:   true,
		Return:    realRef,
		Def:       ie.Holder,
	})
	g := c.Dst.AddMethod(def, meta.Method{
		Name:       name,
		Visibility: meta.VisPrivate,
		Flags:      meta.MethodVirtual | meta.MethodFinal | meta.MethodNewSlot | meta.MethodHideBySig | meta.MethodSpecialName,
		Return:     realRef,
		Body:       body,
		Overrides:  []meta.MethodRefID{ref},
	})
	c.Dst.AddProperty(def, meta.Property{Name: ie.HolderName, Type: realRef, Getter: g})
}

// finalize gives the holder accessor of an abstract class shadow its body.
// The shadow is concrete, so the accessor cannot stay abstract.
func (c *Context) finalize(e Entry) error {
	od := c.Src.Type(e.Original)
	if e.Holder == meta.NoMethod || od.IsInterface() {
		return nil
	}
	b := meta.NewBodyBuilder()
	b.Arg(meta.OpLdarg, 0)
	b.Field(meta.OpLdfld, c.selfField(e.Shadow, e.ForwardField))
	b.Op(meta.OpRet)
	body, err := b.Finish()
	if err != nil {
		return c.fail(err, e.Original, getterName(e.HolderName))
	}
	md := c.Dst.Method(e.Holder)
	md.Flags &^= meta.MethodAbstract
	md.Body = body
	return nil
}
