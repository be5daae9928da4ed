package shadow

import (
	"errors"
	"testing"

	"shadowgen/internal/meta"
	"shadowgen/internal/testkit"
)

func sealedContext(t *testing.T, b *testkit.Builder, forward ...meta.DefID) *Context {
	t.Helper()
	c := NewContext(b.M, Options{})
	if err := c.BuildSkeletons(forward, nil); err != nil {
		t.Fatalf("skeletons: %v", err)
	}
	return c
}

func TestRewriteDoublesForwardedInstances(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	box := b.Class("NS", "Box", "T")
	item := b.Class("NS", "Item")
	holder := b.Class("NS", "Holder", "V")
	c := sealedContext(t, b, box, item, holder)
	e, _ := c.Shadows.Lookup(holder)
	sc := Scope{OrigType: holder, ShadowType: e.Shadow}

	cases := []struct {
		name string
		ref  meta.TypeID
		want string
	}{
		{"shadowed instance", b.Inst(box, b.Ref(item)), "Fake.NS.Box`2<[Lib]NS.Item,Fake.NS.Item>"},
		{"parameter argument", b.Inst(box, b.TParam(holder, 0)), "Fake.NS.Box`2<!V,!V>"},
		{"array", b.M.ArrayOf(b.Ref(item)), "Fake.NS.Item[]"},
		{"by-ref", b.M.ByRefOf(b.Ref(item)), "Fake.NS.Item&"},
		{"corelib", b.M.StringType(), "[corelib]System.String"},
	}
	for _, tc := range cases {
		got, err := c.Rewriter().Type(sc, tc.ref)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if name := c.Dst.TypeName(got); name != tc.want {
			t.Fatalf("%s: got=%s want=%s", tc.name, name, tc.want)
		}
	}

	got, err := c.Rewriter().Real(sc, b.Inst(box, b.Ref(item)))
	if err != nil {
		t.Fatalf("real: %v", err)
	}
	if name := c.Dst.TypeName(got); name != "[Lib]NS.Box`1<[Lib]NS.Item>" {
		t.Fatalf("real: got=%s", name)
	}
}

func TestRewriteBinding(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	ia := b.Interface("NS", "IA", "T")
	a := b.Class("NS", "A", "U")
	c := sealedContext(t, b, a)
	e, _ := c.Shadows.Lookup(a)

	// Members of IA<U[]> seen from A: T stands for U[].
	declaring := b.Inst(ia, b.M.ArrayOf(b.TParam(a, 0)))
	sc := c.Rewriter().Member(Scope{OrigType: a, ShadowType: e.Shadow}, declaring, meta.NoMethod, meta.NoMethod)
	got, err := c.Rewriter().Type(sc, b.TParam(ia, 0))
	if err != nil {
		t.Fatalf("bound parameter: %v", err)
	}
	if name := c.Dst.TypeName(got); name != "!U[]" {
		t.Fatalf("bound parameter: got=%s want=!U[]", name)
	}

	_, err = c.Rewriter().Type(Scope{OrigType: a, ShadowType: e.Shadow}, b.TParam(ia, 0))
	if !errors.Is(err, ErrUnresolvedGenericParameter) {
		t.Fatalf("unbound parameter: got=%v want=%v", err, ErrUnresolvedGenericParameter)
	}
}

func TestRetargetRejectsForeignParameters(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	a := b.Class("NS", "A", "T")
	other := b.Class("NS", "Other", "X")
	c := sealedContext(t, b, a, other)
	ea, _ := c.Shadows.Lookup(a)
	eo, _ := c.Shadows.Lookup(other)

	own := c.Dst.ParamRef(c.Dst.Type(ea.Shadow).Slots[0].Real)
	foreign := c.Dst.ParamRef(c.Dst.Type(eo.Shadow).Slots[0].Real)
	sc := Scope{OrigType: a, ShadowType: ea.Shadow}
	if _, err := c.Rewriter().Retarget(sc, c.Dst.ArrayOf(own)); err != nil {
		t.Fatalf("own parameter: %v", err)
	}
	if _, err := c.Rewriter().Retarget(sc, c.Dst.ArrayOf(foreign)); !errors.Is(err, ErrUnresolvedGenericParameter) {
		t.Fatalf("foreign parameter: got=%v want=%v", err, ErrUnresolvedGenericParameter)
	}
}

func TestRewriteBody(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	a := b.Class("NS", "A")
	self := b.Method(a, "Self", b.Ref(a))
	c := sealedContext(t, b, a)
	e, _ := c.Shadows.Lookup(a)

	call := b.M.AddMethodRef(meta.MethodRef{Declaring: b.Ref(a), Name: "Self", HasThis: true, Return: b.Ref(a), Def: self})
	bb := meta.NewBodyBuilder()
	loc := bb.Local(b.Ref(a))
	bb.Arg(meta.OpLdarg, 0)
	bb.Method(meta.OpCallvirt, call)
	bb.Loc(meta.OpStloc, loc)
	bb.Str("done")
	bb.Op(meta.OpPop)
	bb.Loc(meta.OpLdloc, loc)
	bb.Type(meta.OpCastclass, b.Ref(a))
	bb.Op(meta.OpRet)
	body, err := bb.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	out, err := c.Rewriter().Body(Scope{OrigType: a, ShadowType: e.Shadow}, body)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	shadowRef := c.Dst.DefRef(e.Shadow)
	if out.Locals[0] != shadowRef {
		t.Fatalf("local: got=%s", c.Dst.TypeName(out.Locals[0]))
	}
	if out.Instrs[6].Type != shadowRef {
		t.Fatalf("castclass: got=%s", c.Dst.TypeName(out.Instrs[6].Type))
	}
	ref := c.Dst.MethodRef(out.Instrs[1].Method)
	if c.Dst.TypeName(ref.Declaring) != "[Lib]NS.A" || c.Dst.TypeName(ref.Return) != "[Lib]NS.A" {
		t.Fatalf("call: got=%s", c.Dst.MethodRefName(out.Instrs[1].Method))
	}
	if out.Instrs[3].Str != "done" {
		t.Fatalf("string operand lost: got=%q", out.Instrs[3].Str)
	}
}

func TestReinstantiateGenericMethodReferences(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	a := b.Class("NS", "A")
	mapM := b.GenericMethod(a, "Map", []string{"X"}, func(ps []meta.TypeID) (meta.TypeID, []meta.TypeID) {
		return ps[0], ps
	})
	x := b.MParam(mapM, 0)
	c := sealedContext(t, b, a)
	e, _ := c.Shadows.Lookup(a)
	shadowRef := c.Dst.DefRef(e.Shadow)

	bound := b.M.AddMethodRef(meta.MethodRef{
		Declaring: b.Ref(a), Name: "Map", HasThis: true, Return: x, Params: []meta.TypeID{x},
		GenericArity: 1, GenericArgs: []meta.TypeID{b.Ref(a)}, Def: mapM,
	})
	id, err := c.Rewriter().Reinstantiate(Scope{OrigType: a, ShadowType: e.Shadow}, bound)
	if err != nil {
		t.Fatalf("bound: %v", err)
	}
	ref := c.Dst.MethodRef(id)
	if ref.Return != shadowRef || ref.Params[0] != shadowRef || len(ref.GenericArgs) != 1 || ref.GenericArgs[0] != shadowRef {
		t.Fatalf("bound: got=%s", c.Dst.MethodRefName(id))
	}

	sm := c.Dst.AddMethod(e.Shadow, meta.Method{Name: "Map", Visibility: meta.VisPublic, Return: c.Dst.Void()})
	sp := c.Dst.ParamRef(c.Dst.AddMethodParam(sm, "X", 0))
	open := b.M.AddMethodRef(meta.MethodRef{
		Declaring: b.Ref(a), Name: "Map", HasThis: true, Return: x, Params: []meta.TypeID{x},
		GenericArity: 1, Def: mapM,
	})
	id, err = c.Rewriter().Reinstantiate(Scope{OrigType: a, ShadowType: e.Shadow, OrigMethod: mapM, ShadowMethod: sm}, open)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ref = c.Dst.MethodRef(id)
	if ref.Return != sp || ref.Params[0] != sp || len(ref.GenericArgs) != 1 || ref.GenericArgs[0] != sp {
		t.Fatalf("open: got=%s", c.Dst.MethodRefName(id))
	}

	_, err = c.Rewriter().Reinstantiate(Scope{OrigType: a, ShadowType: e.Shadow}, open)
	if !errors.Is(err, ErrUnresolvedGenericParameter) {
		t.Fatalf("open outside a generic method: got=%v want=%v", err, ErrUnresolvedGenericParameter)
	}
}
