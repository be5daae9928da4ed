package shadow

import (
	"fmt"

	"shadowgen/internal/meta"
)

// needsHolder reports whether wrapping a type goes through a fake
// implementation. Static classes are never instantiated and get none.
func needsHolder(td *meta.TypeDef) bool {
	if td.IsInterface() {
		return true
	}
	return td.IsAbstract() && !td.IsSealed()
}

// doubleParams gives def one real parameter per original parameter followed
// by one witness each, recording the pairing in Slots.
func (c *Context) doubleParams(def meta.DefID, orig []meta.ParamID) {
	if len(orig) == 0 {
		return
	}
	slots := make([]meta.GenericSlot, len(orig))
	for i, p := range orig {
		gp := c.Src.Param(p)
		slots[i].Real = c.Dst.AddTypeParam(def, gp.Name, gp.Attrs)
	}
	for i, p := range orig {
		gp := c.Src.Param(p)
		slots[i].Witness = c.Dst.AddTypeParam(def, gp.Name+c.Opts.WitnessSuffix, 0)
	}
	c.Dst.Type(def).Slots = slots
}

func (c *Context) buildSkeleton(orig meta.DefID) error {
	od := c.Src.Type(orig)
	flags := od.Flags
	if !od.IsInterface() {
		flags &^= meta.TypeAbstract
	}
	sd := c.Dst.AddType(meta.TypeDef{
		Namespace:  c.Opts.ShadowNamespace(od.Namespace),
		Name:       od.Name,
		Visibility: od.Visibility,
		Flags:      flags,
	})
	c.doubleParams(sd, od.GenericParams)
	if err := c.Shadows.Register(Entry{
		Kind:     EntryForward,
		Original: orig,
		Shadow:   sd,
		Key:      c.rw.keyFor(od),
	}); err != nil {
		return c.fail(err, orig, "")
	}
	delete(c.pending, orig)

	sc := Scope{OrigType: orig, ShadowType: sd}
	if !od.IsInterface() {
		base := c.Dst.Object()
		if od.Base != meta.NoType {
			if bdef, ok := c.Src.HeadDef(od.Base); ok {
				if _, waiting := c.pending[bdef]; waiting {
					return &Error{Err: ErrBaseNotBuilt, Type: od.FullName(), Detail: c.Src.Type(bdef).FullName()}
				}
			}
			var err error
			if base, err = c.rw.Type(sc, od.Base); err != nil {
				return c.fail(err, orig, "base")
			}
		}
		c.Dst.Type(sd).Base = base
	}

	self := c.rw.RealSelf(orig, sd)
	holder := needsHolder(od)
	if holder {
		name := c.Opts.HolderName(od.FullName())
		getter := c.Dst.AddMethod(sd, meta.Method{
			Name:       getterName(name),
			Visibility: meta.VisPublic,
			Flags:      meta.MethodVirtual | meta.MethodAbstract | meta.MethodNewSlot | meta.MethodHideBySig | meta.MethodSpecialName,
			Return:     self,
		})
		prop := c.Dst.AddProperty(sd, meta.Property{Name: name, Type: self, Getter: getter})
		if err := c.Shadows.update(orig, func(e *Entry) {
			e.Holder = getter
			e.HolderProp = prop
			e.HolderName = name
		}); err != nil {
			return c.fail(err, orig, "")
		}
	}
	if !od.IsInterface() {
		field := c.Dst.AddField(sd, meta.Field{
			Name:       c.Opts.ForwardField,
			Visibility: meta.VisAssembly,
			Type:       self,
		})
		ctor := c.Dst.AddMethod(sd, c.forwardCtor(self))
		if err := c.Shadows.update(orig, func(e *Entry) {
			e.ForwardField = field
			e.ForwardCtor = ctor
		}); err != nil {
			return c.fail(err, orig, "")
		}
	}
	if holder {
		return c.buildFakeImpl(orig, sd)
	}
	return nil
}

func (c *Context) forwardCtor(held meta.TypeID) meta.Method {
	return meta.Method{
		Name:       meta.CtorName,
		Visibility: meta.VisPublic,
		Flags:      meta.MethodHideBySig | meta.MethodSpecialName | meta.MethodRTSpecialName,
		Return:     c.Dst.Void(),
		Params:     []meta.Param{{Name: "instance", Type: held}},
	}
}

// buildFakeImpl adds the concrete wrapper for an interface or abstract
// shadow. For an interface it implements the shadow and stores the held
// instance itself; for an abstract class it derives from the shadow and
// reuses the inherited forward field.
func (c *Context) buildFakeImpl(orig, sd meta.DefID) error {
	od := c.Src.Type(orig)
	fd := c.Dst.AddType(meta.TypeDef{
		Namespace:  c.Opts.ShadowNamespace(od.Namespace),
		Name:       c.Opts.FakeImplPrefix + od.Name,
		Visibility: od.Visibility,
		Flags:      meta.TypeSealed,
	})
	c.doubleParams(fd, od.GenericParams)
	shadowInst := c.rw.ShadowSelf(sd, fd)
	held := c.rw.RealSelf(orig, fd)

	var field meta.FieldID
	if od.IsInterface() {
		impl := c.Dst.Type(fd)
		impl.Base = c.Dst.Object()
		impl.Interfaces = append(impl.Interfaces, shadowInst)
		field = c.Dst.AddField(fd, meta.Field{
			Name:       c.Opts.ForwardField,
			Visibility: meta.VisPrivate,
			Type:       held,
		})
	} else {
		c.Dst.Type(fd).Base = shadowInst
	}
	ctor := c.Dst.AddMethod(fd, c.forwardCtor(held))
	if err := c.Shadows.update(orig, func(e *Entry) {
		e.FakeImpl = fd
		e.FakeImplCtor = ctor
		e.FakeImplHeld = field
	}); err != nil {
		return c.fail(err, orig, "")
	}
	return nil
}

// copyEnum copies an enum as a plain value type in the shadow namespace.
// Literal fields typed as the enum itself are retyped to the copy.
func (c *Context) copyEnum(orig meta.DefID) error {
	od := c.Src.Type(orig)
	if od == nil || !od.IsEnum() {
		return &Error{Err: ErrInvalidReference, Detail: fmt.Sprintf("definition %d is not an enum", orig)}
	}
	ed := c.Dst.AddType(meta.TypeDef{
		Namespace:  c.Opts.ShadowNamespace(od.Namespace),
		Name:       od.Name,
		Visibility: od.Visibility,
		Flags:      od.Flags,
	})
	if err := c.Shadows.Register(Entry{
		Kind:     EntryEnum,
		Original: orig,
		Shadow:   ed,
		Key:      c.rw.keyFor(od),
	}); err != nil {
		return c.fail(err, orig, "")
	}
	sc := Scope{OrigType: orig, ShadowType: ed}
	base := c.Dst.EnumBase()
	if od.Base != meta.NoType {
		var err error
		if base, err = c.rw.Type(sc, od.Base); err != nil {
			return c.fail(err, orig, "base")
		}
	}
	c.Dst.Type(ed).Base = base
	for _, f := range od.Fields {
		of := c.Src.Field(f)
		t, err := c.rw.Type(sc, of.Type)
		if err != nil {
			return c.fail(err, orig, of.Name)
		}
		c.Dst.AddField(ed, meta.Field{
			Name:        of.Name,
			Visibility:  of.Visibility,
			Flags:       of.Flags,
			Type:        t,
			HasConstant: of.HasConstant,
			Constant:    of.Constant,
		})
	}
	return nil
}
