package shadow

import (
	"fortio.org/safecast"

	"shadowgen/internal/meta"
)

// held describes where a generated type keeps the wrapped instance.
type held struct {
	field     meta.FieldRefID
	typ       meta.TypeID
	valueType bool
}

func (c *Context) heldOf(def meta.DefID, field meta.FieldID, valueType bool) held {
	return held{
		field:     c.selfField(def, field),
		typ:       c.Dst.Field(field).Type,
		valueType: valueType,
	}
}

// forward is one forwarding body to synthesize.
type forward struct {
	// scope evaluates declaring; scope.ShadowMethod is the method being filled.
	scope Scope
	// declaring is the source reference the original member is reached
	// through, NoType for scope.OrigType itself.
	declaring meta.TypeID
	method    meta.MethodID
	held      held
}

// synthesizeForward builds the body that loads the held instance, converts
// every argument from shadow to original, calls the original member and
// wraps the result back into a shadow.
func (c *Context) synthesizeForward(f forward) (*meta.Body, error) {
	if !c.Shadows.Sealed() {
		return nil, ErrShadowMapOpen
	}
	om := c.Src.Method(f.method)
	ms := c.rw.Member(f.scope, f.declaring, f.method, f.scope.ShadowMethod)
	b := meta.NewBodyBuilder()

	op := meta.OpCall
	first := 0
	if !om.IsStatic() {
		first = 1
		b.Arg(meta.OpLdarg, 0)
		switch {
		case !f.held.valueType:
			b.Field(meta.OpLdfld, f.held.field)
			if om.IsVirtual() {
				op = meta.OpCallvirt
			}
		case c.declaredOnInterface(f):
			b.Field(meta.OpLdfld, f.held.field)
			b.Type(meta.OpBox, f.held.typ)
			op = meta.OpCallvirt
		default:
			b.Field(meta.OpLdflda, f.held.field)
		}
	}
	for i, p := range om.Params {
		idx, err := safecast.Conv[uint32](first + i)
		if err != nil {
			return nil, err
		}
		if err := c.loadArgument(b, ms, p.Type, idx); err != nil {
			return nil, err
		}
	}
	target, err := c.rw.MethodTarget(f.scope, f.method, f.declaring)
	if err != nil {
		return nil, err
	}
	b.Method(op, target)
	if err := c.wrapReturn(b, ms, om.Return); err != nil {
		return nil, err
	}
	b.Op(meta.OpRet)
	return b.Finish()
}

func (c *Context) declaredOnInterface(f forward) bool {
	if f.declaring == meta.NoType {
		return c.Src.Type(f.scope.OrigType).IsInterface()
	}
	return c.Src.IsInterfaceRef(f.declaring)
}

// forwardHead returns the forwarding entry for the head of a source
// reference. Arrays, by-refs, generic parameters and enums have none.
func (c *Context) forwardHead(t meta.TypeID) (Entry, bool) {
	def, ok := c.Src.HeadDef(t)
	if !ok {
		return Entry{}, false
	}
	e, ok := c.Shadows.Lookup(def)
	if !ok || e.Kind != EntryForward {
		return Entry{}, false
	}
	return e, true
}

// loadArgument pushes argument idx and, when its declared type is shadowed,
// unwraps it to the original instance. Reference-typed nulls stay null.
func (c *Context) loadArgument(b *meta.BodyBuilder, ms Scope, t meta.TypeID, idx uint32) error {
	b.Arg(meta.OpLdarg, idx)
	e, ok := c.forwardHead(t)
	if !ok {
		return nil
	}
	shadowT, err := c.rw.Type(ms, t)
	if err != nil {
		return err
	}
	realT, err := c.rw.Real(ms, t)
	if err != nil {
		return err
	}
	var unwrap func()
	if e.Holder != meta.NoMethod {
		ref := c.Dst.AddMethodRef(meta.MethodRef{
			Declaring: shadowT,
			Name:      getterName(e.HolderName),
			HasThis:   true,
			Return:    realT,
			Def:       e.Holder,
		})
		unwrap = func() { b.Method(meta.OpCallvirt, ref) }
	} else {
		ref := c.Dst.AddFieldRef(meta.FieldRef{
			Declaring: shadowT,
			Name:      c.Opts.ForwardField,
			Type:      realT,
			Def:       e.ForwardField,
		})
		unwrap = func() { b.Field(meta.OpLdfld, ref) }
	}
	if c.Src.IsValueType(t) {
		unwrap()
		return nil
	}
	notNull, done := b.NewLabel(), b.NewLabel()
	b.Op(meta.OpDup)
	b.Branch(meta.OpBrtrue, notNull)
	b.Op(meta.OpPop)
	b.Op(meta.OpLdnull)
	b.Branch(meta.OpBr, done)
	b.Mark(notNull)
	unwrap()
	b.Mark(done)
	return nil
}

// wrapReturn converts the original result on the stack into its shadow.
// Arrays with shadowed elements are null-checked and passed through.
func (c *Context) wrapReturn(b *meta.BodyBuilder, ms Scope, t meta.TypeID) error {
	if t == meta.NoType || c.Src.IsVoid(t) {
		return nil
	}
	if tr, ok := c.Src.Ref(t); ok && tr.Kind == meta.RefArray {
		if _, shadowed := c.shadowedElement(tr.Elem); shadowed {
			// Declared as Fake.A[] but the value is still the original A[].
			notNull := b.NewLabel()
			b.Op(meta.OpDup)
			b.Branch(meta.OpBrtrue, notNull)
			b.Op(meta.OpRet)
			b.Mark(notNull)
		}
		return nil
	}
	e, ok := c.forwardHead(t)
	if !ok {
		return nil
	}
	shadowT, err := c.rw.Type(ms, t)
	if err != nil {
		return err
	}
	realT, err := c.rw.Real(ms, t)
	if err != nil {
		return err
	}
	wrapper, ctor := shadowT, e.ForwardCtor
	if e.NeedsFakeImpl() {
		if e.FakeImpl == meta.NoDef {
			return &Error{Err: ErrMissingForwardingImplementation, Type: c.Src.Type(e.Original).FullName()}
		}
		wrapper, ctor = c.replaceHead(shadowT, e.FakeImpl), e.FakeImplCtor
	}
	ref := c.Dst.AddMethodRef(meta.MethodRef{
		Declaring: wrapper,
		Name:      meta.CtorName,
		HasThis:   true,
		Return:    c.Dst.Void(),
		Params:    []meta.TypeID{realT},
		Def:       ctor,
	})
	if c.Src.IsValueType(t) {
		b.Method(meta.OpNewobj, ref)
		return nil
	}
	notNull := b.NewLabel()
	b.Op(meta.OpDup)
	b.Branch(meta.OpBrtrue, notNull)
	b.Op(meta.OpRet)
	b.Mark(notNull)
	b.Method(meta.OpNewobj, ref)
	return nil
}

// shadowedElement finds the shadow entry of an array element's head,
// looking through nested arrays.
func (c *Context) shadowedElement(t meta.TypeID) (Entry, bool) {
	for range len(c.Src.Refs) {
		tr, ok := c.Src.Ref(t)
		if !ok {
			return Entry{}, false
		}
		if tr.Kind != meta.RefArray {
			break
		}
		t = tr.Elem
	}
	def, ok := c.Src.HeadDef(t)
	if !ok {
		return Entry{}, false
	}
	return c.Shadows.Lookup(def)
}

// replaceHead swaps the generic head of a target reference for def,
// keeping its arguments.
func (c *Context) replaceHead(t meta.TypeID, def meta.DefID) meta.TypeID {
	tr, ok := c.Dst.Ref(t)
	if ok && tr.Kind == meta.RefGenericInst {
		return c.Dst.Inst(c.Dst.DefRef(def), tr.Args...)
	}
	return c.Dst.DefRef(def)
}
