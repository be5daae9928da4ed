package meta

import (
	"bytes"
	"strings"
	"testing"
)

func TestInterningSharesStructurallyEqualRefs(t *testing.T) {
	m := NewModule("Lib")
	def := m.AddType(TypeDef{Namespace: "NS", Name: "List", Visibility: VisPublic})
	p := m.AddTypeParam(def, "T", 0)

	a := m.Inst(m.DefRef(def), m.Int32())
	b := m.Inst(m.DefRef(def), m.Int32())
	if a != b {
		t.Fatalf("generic instance: got=%d and %d", a, b)
	}
	if m.Inst(m.DefRef(def), m.StringType()) == a {
		t.Fatalf("different arguments must not share a reference")
	}
	if m.ArrayOf(a) != m.ArrayOf(b) || m.ArrayOf(a) == m.ByRefOf(a) {
		t.Fatalf("array and by-ref interning broken")
	}
	if m.Inst(m.DefRef(def)) != m.DefRef(def) {
		t.Fatalf("instantiating without arguments must return the head")
	}
	if got, want := m.SelfRef(def), m.Inst(m.DefRef(def), m.ParamRef(p)); got != want {
		t.Fatalf("self reference: got=%s want=%s", m.TypeName(got), m.TypeName(want))
	}
	if _, ok := m.Ref(NoType); ok {
		t.Fatalf("NoType must not resolve")
	}
}

func TestHeadAndKindQueries(t *testing.T) {
	m := NewModule("Lib")
	box := m.AddType(TypeDef{Namespace: "NS", Name: "Box", Flags: TypeValueType | TypeSealed})
	m.AddTypeParam(box, "T", 0)
	itf := m.AddType(TypeDef{Namespace: "NS", Name: "IRun", Flags: TypeInterface | TypeAbstract})
	inst := m.Inst(m.DefRef(box), m.Object())

	if m.Head(inst) != m.DefRef(box) {
		t.Fatalf("head: got=%s", m.TypeName(m.Head(inst)))
	}
	if def, ok := m.HeadDef(inst); !ok || def != box {
		t.Fatalf("head definition: got=%d", def)
	}
	if _, ok := m.HeadDef(m.Object()); ok {
		t.Fatalf("imports have no local definition")
	}
	cases := []struct {
		name  string
		id    TypeID
		value bool
		iface bool
	}{
		{"struct instance", inst, true, false},
		{"interface", m.DefRef(itf), false, true},
		{"corelib value", m.Int32(), true, false},
		{"corelib class", m.StringType(), false, false},
		{"array", m.ArrayOf(m.Int32()), false, false},
	}
	for _, tc := range cases {
		if got := m.IsValueType(tc.id); got != tc.value {
			t.Fatalf("%s: value type got=%v want=%v", tc.name, got, tc.value)
		}
		if got := m.IsInterfaceRef(tc.id); got != tc.iface {
			t.Fatalf("%s: interface got=%v want=%v", tc.name, got, tc.iface)
		}
	}
	if !m.IsVoid(m.Void()) || m.IsVoid(m.Object()) {
		t.Fatalf("void detection broken")
	}
}

func TestFindTypeUsesArity(t *testing.T) {
	m := NewModule("Lib")
	plain := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
	generic := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
	m.AddTypeParam(generic, "T", 0)

	if id, ok := m.FindType("NS", "A", 0); !ok || id != plain {
		t.Fatalf("arity 0: got=%d want=%d", id, plain)
	}
	if id, ok := m.FindType("NS", "A", 1); !ok || id != generic {
		t.Fatalf("arity 1: got=%d want=%d", id, generic)
	}
	if m.Type(generic).FullName() != "NS.A`1" {
		t.Fatalf("full name: got=%s", m.Type(generic).FullName())
	}
	if _, ok := m.FindType("NS", "A", 2); ok {
		t.Fatalf("arity 2 must not resolve")
	}
}

func TestBodyBuilderLabels(t *testing.T) {
	b := NewBodyBuilder()
	skip := b.NewLabel()
	b.Arg(OpLdarg, 0)
	b.Branch(OpBrtrue, skip)
	b.Op(OpLdnull)
	b.Mark(skip)
	b.Op(OpRet)
	body, err := b.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := body.Instrs[1]; got.Kind != OperandBranch || got.Index != 3 {
		t.Fatalf("branch: got=%+v want target 3", got)
	}

	open := NewBodyBuilder()
	open.Branch(OpBr, open.NewLabel())
	open.Op(OpRet)
	if _, err := open.Finish(); err == nil {
		t.Fatalf("unmarked label must fail")
	}

	past := NewBodyBuilder()
	l := past.NewLabel()
	past.Branch(OpBr, l)
	past.Mark(l)
	if _, err := past.Finish(); err == nil {
		t.Fatalf("label past the end must fail")
	}
}

func TestValidateReportsBrokenModules(t *testing.T) {
	cases := []struct {
		name  string
		build func(m *Module)
		want  string
	}{
		{"arity", func(m *Module) {
			def := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
			m.AddTypeParam(def, "T", 0)
			m.Inst(m.DefRef(def), m.Int32(), m.Int32())
		}, "2 generic arguments for arity 1"},
		{"abstract body", func(m *Module) {
			def := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
			m.AddMethod(def, Method{Name: "Run", Flags: MethodAbstract, Return: m.Void(), Body: &Body{Instrs: []Instr{{Op: OpRet}}}})
		}, "abstract method with a body"},
		{"argument", func(m *Module) {
			def := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
			b := NewBodyBuilder()
			b.Arg(OpLdarg, 3)
			b.Op(OpRet)
			body, _ := b.Finish()
			m.AddMethod(def, Method{Name: "Run", Flags: MethodStatic, Return: m.Void(), Body: body})
		}, "argument 3 out of range"},
		{"operand", func(m *Module) {
			def := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
			m.AddMethod(def, Method{Name: "Run", Return: m.Void(), Body: &Body{Instrs: []Instr{{Op: OpCall}, {Op: OpRet}}}})
		}, "operand kind mismatch"},
		{"no ret", func(m *Module) {
			def := m.AddType(TypeDef{Namespace: "NS", Name: "A"})
			b := NewBodyBuilder()
			b.Op(OpNop)
			body, _ := b.Finish()
			m.AddMethod(def, Method{Name: "Run", Return: m.Void(), Body: body})
		}, "does not end with ret"},
	}
	for _, tc := range cases {
		m := NewModule("Lib")
		tc.build(m)
		err := Validate(m)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got=%v want containing %q", tc.name, err, tc.want)
		}
	}
	if err := Validate(NewModule("Empty")); err != nil {
		t.Fatalf("empty module: %v", err)
	}
}

func TestPrintRendersDefinitions(t *testing.T) {
	m := NewModule("Lib")
	def := m.AddType(TypeDef{Namespace: "NS", Name: "A", Visibility: VisPublic, Base: m.Object()})
	m.AddField(def, Field{Name: "count", Visibility: VisPrivate, Type: m.Int32()})
	b := NewBodyBuilder()
	b.Arg(OpLdarg, 0)
	b.Op(OpRet)
	body, _ := b.Finish()
	m.AddMethod(def, Method{Name: "Echo", Visibility: VisPublic, Flags: MethodStatic, Return: m.Int32(), Params: []Param{{Name: "x", Type: m.Int32()}}, Body: body})

	var buf bytes.Buffer
	if err := Print(&buf, m); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"module Lib",
		"class NS.A extends [corelib]System.Object",
		"field private [corelib]System.Int32 count",
		"static [corelib]System.Int32 NS.A::Echo([corelib]System.Int32)",
		"IL_0000  ldarg     0",
		"IL_0001  ret",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
