package metafile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"shadowgen/internal/meta"
	"shadowgen/internal/shadow"
	"shadowgen/internal/testkit"
)

func sample(t *testing.T) *meta.Module {
	t.Helper()
	b := testkit.NewBuilder("Lib")
	ia := b.Interface("NS", "IA", "T")
	b.Method(ia, "Get", b.TParam(ia, 0))
	a := b.Class("NS", "A", "T")
	b.Implements(a, b.Inst(ia, b.TParam(a, 0)))
	b.Method(a, "Get", b.TParam(a, 0))
	b.Method(a, "Self", b.Self(a))
	res, err := shadow.Weave(context.Background(), shadow.Request{Source: b.M, Types: []string{"NS.A`1", "NS.IA`1"}}, shadow.Options{})
	if err != nil {
		t.Fatalf("weave: %v", err)
	}
	return res.Module
}

func printed(t *testing.T, m *meta.Module) string {
	t.Helper()
	var buf bytes.Buffer
	if err := meta.Print(&buf, m); err != nil {
		t.Fatalf("print: %v", err)
	}
	return buf.String()
}

func TestEncodeDecodePreservesModule(t *testing.T) {
	m := sample(t)
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := printed(t, m); printed(t, got) != want {
		t.Fatalf("decoded module differs:\n%s\nwant:\n%s", printed(t, got), want)
	}
	// Interning must work again after decode.
	if id := got.Object(); id != m.Object() {
		t.Fatalf("object reference: got=%d want=%d", id, m.Object())
	}
	if len(got.Refs) != len(m.Refs) {
		t.Fatalf("refs after interning: got=%d want=%d", len(got.Refs), len(m.Refs))
	}
}

func TestDecodeRejectsForeignDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  any
		want error
	}{
		{"magic", &envelope{Magic: "NOPE", Schema: SchemaVersion, Module: meta.NewModule("x")}, ErrNotSnapshot},
		{"schema", &envelope{Magic: Magic, Schema: SchemaVersion + 1, Module: meta.NewModule("x")}, ErrSchemaMismatch},
	}
	for _, tc := range cases {
		raw, err := msgpack.Marshal(tc.doc)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if _, err := Decode(bytes.NewReader(raw)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got=%v want=%v", tc.name, err, tc.want)
		}
	}
}

func TestDecodeValidates(t *testing.T) {
	m := meta.NewModule("broken")
	def := m.AddType(meta.TypeDef{Namespace: "NS", Name: "A", Visibility: meta.VisPublic})
	m.AddMethod(def, meta.Method{Name: "Run", Visibility: meta.VisPublic, Return: m.Void(), Body: &meta.Body{}})
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatalf("body without ret must not decode")
	}
}

func TestDecodeRejectsDanglingMembers(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(m *meta.Module, def meta.DefID)
		want    string
	}{
		{"method list", func(m *meta.Module, def meta.DefID) {
			m.Type(def).Methods = append(m.Type(def).Methods, meta.MethodID(999))
		}, "method 999 is not declared by the type"},
		{"foreign field", func(m *meta.Module, def meta.DefID) {
			other := m.AddType(meta.TypeDef{Namespace: "NS", Name: "B"})
			f := m.AddField(other, meta.Field{Name: "x", Type: m.Int32()})
			m.Type(def).Fields = append(m.Type(def).Fields, f)
		}, "is not declared by the type"},
		{"return type", func(m *meta.Module, def meta.DefID) {
			m.Method(m.Type(def).Methods[0]).Return = meta.TypeID(500)
		}, "return type 500 out of range"},
		{"parameter type", func(m *meta.Module, def meta.DefID) {
			md := m.Method(m.Type(def).Methods[0])
			md.Params = append(md.Params, meta.Param{Name: "x", Type: meta.TypeID(77)})
		}, "parameter 0 type 77 out of range"},
		{"base", func(m *meta.Module, def meta.DefID) {
			m.Type(def).Base = meta.TypeID(400)
		}, "base 400 out of range"},
	}
	for _, tc := range cases {
		m := meta.NewModule("broken")
		def := m.AddType(meta.TypeDef{Namespace: "NS", Name: "A", Visibility: meta.VisPublic})
		m.AddMethod(def, meta.Method{Name: "Run", Visibility: meta.VisPublic, Return: m.Void()})
		tc.corrupt(m, def)
		var buf bytes.Buffer
		if err := Encode(&buf, m); err != nil {
			t.Fatalf("%s: encode: %v", tc.name, err)
		}
		_, err := Decode(&buf)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got=%v want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "lib"+Ext)
	m := sample(t)
	if err := WriteFile(path, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, m); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files: got=%d want=1", len(entries))
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != m.Name {
		t.Fatalf("name: got=%s want=%s", got.Name, m.Name)
	}
}
