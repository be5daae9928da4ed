package shadow

import (
	"slices"
	"testing"

	"shadowgen/internal/meta"
	"shadowgen/internal/testkit"
)

func TestSelectFiltersAndOrders(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	b.Class("", "<Module>")
	base := b.Class("NS", "Base")
	derived := b.Class("NS", "Derived")
	b.Extends(derived, b.Ref(base))
	hidden := b.Class("NS", "Hidden")
	b.Private(hidden)
	e := b.Enum("NS", "Kind", "A")

	names := []string{"NS.Derived", "<Module>", "NS.Hidden", "NS.Kind", "NS.Base", "NS.Missing"}
	got := Select(b.M, names)
	if want := []meta.DefID{base, derived}; !slices.Equal(got, want) {
		t.Fatalf("Select: got=%v want=%v", got, want)
	}
	if again := Select(b.M, names); !slices.Equal(again, got) {
		t.Fatalf("Select is not stable: got=%v want=%v", again, got)
	}
	if enums := SelectEnums(b.M, names); !slices.Equal(enums, []meta.DefID{e}) {
		t.Fatalf("SelectEnums: got=%v want=%v", enums, []meta.DefID{e})
	}
}

func TestSelectNormalizesNames(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	id := b.Class("NS", "Caf\u00e9")
	got := Select(b.M, []string{"NS.Cafe\u0301"})
	if !slices.Equal(got, []meta.DefID{id}) {
		t.Fatalf("decomposed name: got=%v want=%v", got, []meta.DefID{id})
	}
}

func TestInheritanceDepth(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	ia := b.Interface("NS", "IA")
	a := b.Class("NS", "A")
	c := b.Class("NS", "C")
	b.Extends(c, b.Ref(a))

	cases := []struct {
		id   meta.DefID
		want int
	}{
		{ia, 1},
		{a, 2},
		{c, 3},
	}
	for _, tc := range cases {
		if got := InheritanceDepth(b.M, tc.id); got != tc.want {
			t.Fatalf("depth of %s: got=%d want=%d", b.M.Type(tc.id).FullName(), got, tc.want)
		}
	}
}

func TestShadowMapLookups(t *testing.T) {
	sm := NewShadowMap()
	if err := sm.Register(Entry{Kind: EntryForward, Original: 1, Shadow: 10, Key: "Fake.A"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sm.Register(Entry{Kind: EntryForward, Original: 1, Shadow: 11, Key: "Fake.B"}); err == nil {
		t.Fatalf("second shadow for one original must fail")
	}
	if err := sm.Register(Entry{Kind: EntryForward, Original: 2, Shadow: 11, Key: "Fake.A"}); err == nil {
		t.Fatalf("duplicate shadow name must fail")
	}
	if err := sm.update(1, func(e *Entry) { e.FakeImpl = 12 }); err != nil {
		t.Fatalf("update: %v", err)
	}
	sm.Seal()
	if err := sm.update(1, func(e *Entry) {}); err != ErrShadowMapSealed {
		t.Fatalf("update after seal: got=%v want=%v", err, ErrShadowMapSealed)
	}
	if e, ok := sm.LookupShadow(12); !ok || e.Original != 1 {
		t.Fatalf("lookup by fake impl: got=%+v", e)
	}
	if e, ok := sm.LookupKey("Fake.A"); !ok || e.Shadow != 10 {
		t.Fatalf("lookup by key: got=%+v", e)
	}
	if sm.Len() != 1 || sm.Pairs()[1] != 10 {
		t.Fatalf("pairs: got=%v", sm.Pairs())
	}
}
