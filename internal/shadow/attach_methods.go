package shadow

import (
	"strings"

	"shadowgen/internal/meta"
	"shadowgen/internal/trace"
)

// forwardable selects the members that get a forwarding counterpart:
// public non-constructor methods and property accessors.
func forwardable(md *meta.Method) bool {
	if !md.IsPublic() || md.IsConstructor() {
		return false
	}
	if md.IsSpecialName() {
		return strings.HasPrefix(md.Name, "get_") || strings.HasPrefix(md.Name, "set_")
	}
	return true
}

const keptMethodFlags = meta.MethodStatic | meta.MethodVirtual | meta.MethodAbstract |
	meta.MethodFinal | meta.MethodNewSlot | meta.MethodHideBySig | meta.MethodSpecialName

func shadowMethodFlags(om *meta.Method, iface bool) meta.MethodFlags {
	f := om.Flags & keptMethodFlags
	if !iface {
		f &^= meta.MethodAbstract
	}
	return f
}

// declare creates the signature of a generated counterpart of the source
// method m on sc.ShadowType. sc evaluates m's signature (its Bind already
// covers m's declaring type); the returned scope adds the method mapping.
func (c *Context) declare(sc Scope, m meta.MethodID, name string, vis meta.Visibility, flags meta.MethodFlags) (meta.MethodID, Scope, error) {
	om := c.Src.Method(m)
	sm := c.Dst.AddMethod(sc.ShadowType, meta.Method{Name: name, Visibility: vis, Flags: flags})
	for _, p := range om.GenericParams {
		gp := c.Src.Param(p)
		c.Dst.AddMethodParam(sm, gp.Name, gp.Attrs)
	}
	ms := sc
	ms.OrigMethod = m
	ms.ShadowMethod = sm
	for i, p := range om.GenericParams {
		for _, cons := range c.Src.Param(p).Constraints {
			t, err := c.rw.Real(ms, cons)
			if err != nil {
				return meta.NoMethod, ms, err
			}
			mp := c.Dst.Param(c.Dst.Method(sm).GenericParams[i])
			mp.Constraints = append(mp.Constraints, t)
		}
	}
	ret, err := c.rw.Type(ms, om.Return)
	if err != nil {
		return meta.NoMethod, ms, err
	}
	if _, err := c.rw.Retarget(ms, ret); err != nil {
		return meta.NoMethod, ms, err
	}
	params := make([]meta.Param, len(om.Params))
	for i, p := range om.Params {
		t, err := c.rw.Type(ms, p.Type)
		if err != nil {
			return meta.NoMethod, ms, err
		}
		if _, err := c.rw.Retarget(ms, t); err != nil {
			return meta.NoMethod, ms, err
		}
		params[i] = meta.Param{Name: p.Name, Type: t, Flags: p.Flags}
	}
	md := c.Dst.Method(sm)
	md.Return = ret
	md.Params = params
	return sm, ms, nil
}

// attachMethods adds a counterpart for every forwardable method. Interface
// shadows receive abstract slots; everything else a forwarding body.
func (c *Context) attachMethods(e Entry) error {
	od := c.Src.Type(e.Original)
	iface := od.IsInterface()
	// Static interface members have no held instance.
	var h held
	if !iface {
		h = c.heldOf(e.Shadow, e.ForwardField, od.IsValueType())
	}
	base := Scope{OrigType: e.Original, ShadowType: e.Shadow}
	mapped := make(map[meta.MethodID]meta.MethodID)
	for _, m := range od.Methods {
		om := c.Src.Method(m)
		if !forwardable(om) {
			continue
		}
		sm, _, err := c.declare(base, m, om.Name, om.Visibility, shadowMethodFlags(om, iface))
		if err != nil {
			return c.fail(err, e.Original, om.Name)
		}
		mapped[m] = sm
		if iface && !om.IsStatic() {
			continue
		}
		sc := base
		sc.ShadowMethod = sm
		body, err := c.synthesizeForward(forward{scope: sc, method: m, held: h})
		if err != nil {
			return c.fail(err, e.Original, om.Name)
		}
		c.Dst.Method(sm).Body = body
		trace.Point(c.tracer, trace.ScopeMember, om.Name, "forward", c.span)
	}
	return c.attachProperties(e, od, mapped)
}

// attachProperties recreates properties whose accessors were forwarded.
func (c *Context) attachProperties(e Entry, od *meta.TypeDef, mapped map[meta.MethodID]meta.MethodID) error {
	sc := Scope{OrigType: e.Original, ShadowType: e.Shadow}
	for _, p := range od.Properties {
		op := c.Src.Property(p)
		getter, hasGet := mapped[op.Getter]
		setter, hasSet := mapped[op.Setter]
		if !hasGet && !hasSet {
			continue
		}
		t, err := c.rw.Type(sc, op.Type)
		if err != nil {
			return c.fail(err, e.Original, op.Name)
		}
		c.Dst.AddProperty(e.Shadow, meta.Property{Name: op.Name, Type: t, Getter: getter, Setter: setter})
	}
	return nil
}
