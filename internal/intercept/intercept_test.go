package intercept

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shadowgen/internal/shadow"
	"shadowgen/internal/testkit"
)

var runMember = Member{Type: "NS.A", Name: "Run"}

func double(args []any) (any, error) {
	return args[0].(int) * 2, nil
}

func TestInvokeRunsChainInOrder(t *testing.T) {
	var order []string
	tag := func(name string) Interceptor {
		return Func(func(inv Invocation) {
			order = append(order, name+">")
			_ = inv.Proceed()
			order = append(order, "<"+name)
		})
	}
	ret, err := Invoke(runMember, double, []any{4}, tag("outer"), tag("inner"))
	if err != nil || ret != 8 {
		t.Fatalf("invoke: got=%v, %v want=8", ret, err)
	}
	if got := strings.Join(order, " "); got != "outer> inner> <inner <outer" {
		t.Fatalf("order: got=%s", got)
	}
}

func TestInterceptorEditsArgumentsAndReturn(t *testing.T) {
	args := []any{3}
	bump := Func(func(inv Invocation) {
		if err := inv.SetArgument(0, inv.Arguments()[0].(int)+1); err != nil {
			t.Fatalf("set argument: %v", err)
		}
		if err := inv.SetArgument(1, 0); err == nil {
			t.Fatalf("out of range argument must fail")
		}
		_ = inv.Proceed()
		inv.SetReturnValue(inv.ReturnValue().(int) + 100)
	})
	ret, err := Invoke(runMember, double, args, bump)
	if err != nil || ret != 108 {
		t.Fatalf("invoke: got=%v, %v want=108", ret, err)
	}
	if args[0] != 3 {
		t.Fatalf("caller arguments must not change: got=%v", args[0])
	}
}

func TestInterceptorMaySkipTarget(t *testing.T) {
	called := false
	target := func([]any) (any, error) {
		called = true
		return nil, nil
	}
	stub := Func(func(inv Invocation) { inv.SetReturnValue("stubbed") })
	ret, err := Invoke(runMember, target, nil, stub)
	if err != nil || ret != "stubbed" || called {
		t.Fatalf("stub: got=%v, %v called=%v", ret, err, called)
	}
}

func TestInvokeErrors(t *testing.T) {
	if _, err := Invoke(runMember, nil, nil); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("no target: got=%v want=%v", err, ErrNoTarget)
	}
	boom := errors.New("boom")
	failing := func([]any) (any, error) { return nil, boom }
	var rec Recorder
	if _, err := Invoke(runMember, failing, []any{1}, &rec); !errors.Is(err, boom) {
		t.Fatalf("target error: got=%v want=%v", err, boom)
	}
	calls := rec.Calls()
	if len(calls) != 1 || !errors.Is(calls[0].Err, boom) || calls[0].Member != runMember {
		t.Fatalf("recorded: got=%+v", calls)
	}
}

func TestRecorderKeepsOriginalArguments(t *testing.T) {
	var rec Recorder
	edit := Func(func(inv Invocation) {
		_ = inv.SetArgument(0, 10)
		_ = inv.Proceed()
	})
	if _, err := Invoke(runMember, double, []any{1}, &rec, edit); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].Args[0] != 1 || calls[0].Return != 20 {
		t.Fatalf("recorded: got=%+v", calls)
	}
	rec.Reset()
	if len(rec.Calls()) != 0 {
		t.Fatalf("reset must drop calls")
	}
}

func TestForwardersOfWovenType(t *testing.T) {
	b := testkit.NewBuilder("Lib")
	a := b.Class("NS", "A")
	b.Method(a, "Run", b.M.Int32(), b.M.Int32())
	b.StaticMethod(a, "Make", b.Ref(a))
	res, err := shadow.Weave(context.Background(), shadow.Request{Source: b.M, Types: []string{"NS.A"}}, shadow.Options{})
	if err != nil {
		t.Fatalf("weave: %v", err)
	}
	entry, ok := res.Shadows.Lookup(a)
	if !ok {
		t.Fatalf("NS.A not shadowed")
	}
	members := Forwarders(res.Module, entry.Shadow)
	if len(members) != 1 {
		t.Fatalf("forwarders: got=%+v want one", members)
	}
	got := members[0]
	if got.Type != "Fake.NS.A" || got.Name != "Run" || got.String() != "Fake.NS.A::Run([corelib]System.Int32)" {
		t.Fatalf("member: got=%+v", got)
	}
	if (Member{Type: "T", Name: "M"}).String() != "T::M" {
		t.Fatalf("fallback name broken")
	}
}
