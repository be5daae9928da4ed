package shadow

import (
	"slices"

	"shadowgen/internal/meta"
)

// attachConstraints copies generic constraints onto the real parameters of
// the shadow and its fake implementation. Constraints keep naming the
// original types.
func (c *Context) attachConstraints(e Entry) error {
	od := c.Src.Type(e.Original)
	for _, def := range []meta.DefID{e.Shadow, e.FakeImpl} {
		if def == meta.NoDef {
			continue
		}
		sc := Scope{OrigType: e.Original, ShadowType: def}
		for i, p := range od.GenericParams {
			gp := c.Src.Param(p)
			for _, cons := range gp.Constraints {
				t, err := c.rw.Real(sc, cons)
				if err != nil {
					return c.fail(err, e.Original, gp.Name)
				}
				rp := c.Dst.Param(c.Dst.Type(def).Slots[i].Real)
				rp.Constraints = append(rp.Constraints, t)
			}
		}
	}
	return nil
}

// attachInterfaces mirrors the implementation list with rewritten
// references, so shadowed interfaces become their shadows.
func (c *Context) attachInterfaces(e Entry) error {
	od := c.Src.Type(e.Original)
	sc := Scope{OrigType: e.Original, ShadowType: e.Shadow}
	for _, itf := range od.Interfaces {
		t, err := c.rw.Type(sc, itf)
		if err != nil {
			return c.fail(err, e.Original, "interfaces")
		}
		sd := c.Dst.Type(e.Shadow)
		if !slices.Contains(sd.Interfaces, t) {
			sd.Interfaces = append(sd.Interfaces, t)
		}
	}
	return nil
}

// attachConstructors fills the forward constructor of the shadow and the
// constructor of its fake implementation.
func (c *Context) attachConstructors(e Entry) error {
	if e.ForwardCtor != meta.NoMethod {
		body, err := c.forwardCtorBody(e)
		if err != nil {
			return c.fail(err, e.Original, meta.CtorName)
		}
		c.Dst.Method(e.ForwardCtor).Body = body
	}
	if e.FakeImpl != meta.NoDef {
		body, err := c.fakeImplCtorBody(e)
		if err != nil {
			return c.fail(err, e.Original, meta.CtorName)
		}
		c.Dst.Method(e.FakeImplCtor).Body = body
	}
	return nil
}

// forwardCtorBody chains to the base shadow's forward constructor when the
// base is shadowed, otherwise to the parameterless base constructor, then
// stores the held instance. Value types have no base call.
func (c *Context) forwardCtorBody(e Entry) (*meta.Body, error) {
	od := c.Src.Type(e.Original)
	base := c.Dst.Type(e.Shadow).Base
	b := meta.NewBodyBuilder()
	if !od.IsValueType() {
		b.Arg(meta.OpLdarg, 0)
		ref := meta.MethodRef{Declaring: base, Name: meta.CtorName, HasThis: true, Return: c.Dst.Void()}
		if be, ok := c.baseShadow(od); ok && be.ForwardCtor != meta.NoMethod {
			held, err := c.rw.Real(Scope{OrigType: e.Original, ShadowType: e.Shadow}, od.Base)
			if err != nil {
				return nil, err
			}
			ref.Params = []meta.TypeID{held}
			ref.Def = be.ForwardCtor
			b.Arg(meta.OpLdarg, 1)
		}
		b.Method(meta.OpCall, c.Dst.AddMethodRef(ref))
	}
	b.Arg(meta.OpLdarg, 0)
	b.Arg(meta.OpLdarg, 1)
	b.Field(meta.OpStfld, c.selfField(e.Shadow, e.ForwardField))
	b.Op(meta.OpRet)
	return b.Finish()
}

func (c *Context) fakeImplCtorBody(e Entry) (*meta.Body, error) {
	impl := c.Dst.Type(e.FakeImpl)
	b := meta.NewBodyBuilder()
	b.Arg(meta.OpLdarg, 0)
	if e.FakeImplHeld != meta.NoField {
		b.Method(meta.OpCall, c.Dst.AddMethodRef(meta.MethodRef{
			Declaring: impl.Base,
			Name:      meta.CtorName,
			HasThis:   true,
			Return:    c.Dst.Void(),
		}))
		b.Arg(meta.OpLdarg, 0)
		b.Arg(meta.OpLdarg, 1)
		b.Field(meta.OpStfld, c.selfField(e.FakeImpl, e.FakeImplHeld))
	} else {
		held := c.rw.RealSelf(e.Original, e.FakeImpl)
		b.Arg(meta.OpLdarg, 1)
		b.Method(meta.OpCall, c.Dst.AddMethodRef(meta.MethodRef{
			Declaring: impl.Base,
			Name:      meta.CtorName,
			HasThis:   true,
			Return:    c.Dst.Void(),
			Params:    []meta.TypeID{held},
			Def:       e.ForwardCtor,
		}))
	}
	b.Op(meta.OpRet)
	return b.Finish()
}

// baseShadow returns the forwarding entry of the original base, if any.
func (c *Context) baseShadow(od *meta.TypeDef) (Entry, bool) {
	if od.Base == meta.NoType {
		return Entry{}, false
	}
	bdef, ok := c.Src.HeadDef(od.Base)
	if !ok {
		return Entry{}, false
	}
	be, ok := c.Shadows.Lookup(bdef)
	if !ok || be.Kind != EntryForward {
		return Entry{}, false
	}
	return be, true
}
