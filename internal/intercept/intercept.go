// Package intercept defines the capability an injection pass attaches to
// woven forwarding methods. The weaver never calls it; generated bodies
// only have to be shaped so that a call can be routed through Invoke.
package intercept

import (
	"errors"
	"fmt"

	"shadowgen/internal/meta"
)

// Member identifies the method an invocation targets.
type Member struct {
	Type      string
	Name      string
	Signature string
}

func (m Member) String() string {
	if m.Signature != "" {
		return m.Signature
	}
	return m.Type + "::" + m.Name
}

// MemberOf describes a method definition of mod.
func MemberOf(mod *meta.Module, id meta.MethodID) (Member, bool) {
	md := mod.Method(id)
	if md == nil {
		return Member{}, false
	}
	owner := ""
	if td := mod.Type(md.Declaring); td != nil {
		owner = td.FullName()
	}
	return Member{Type: owner, Name: md.Name, Signature: mod.MethodName(id)}, true
}

// Forwarders lists the instance methods of def that carry a forwarding body,
// the points an injection pass hooks into. Constructors are excluded.
func Forwarders(mod *meta.Module, def meta.DefID) []Member {
	td := mod.Type(def)
	if td == nil {
		return nil
	}
	var out []Member
	for _, id := range td.Methods {
		md := mod.Method(id)
		if md == nil || md.Body == nil || md.IsStatic() || md.IsConstructor() {
			continue
		}
		if mem, ok := MemberOf(mod, id); ok {
			out = append(out, mem)
		}
	}
	return out
}

// Target is the original implementation an invocation proceeds to.
type Target func(args []any) (any, error)

// Invocation is the mutable view an Interceptor receives.
type Invocation interface {
	Member() Member
	// Arguments returns the live argument slice; writes are seen by Proceed.
	Arguments() []any
	SetArgument(i int, v any) error
	// Proceed runs the next interceptor, or the target when none is left,
	// and stores its return value.
	Proceed() error
	ReturnValue() any
	SetReturnValue(v any)
}

// Interceptor observes or replaces a call. Not calling Proceed skips the
// original implementation.
type Interceptor interface {
	Intercept(inv Invocation)
}

// Func adapts a function to Interceptor.
type Func func(inv Invocation)

func (f Func) Intercept(inv Invocation) { f(inv) }

// ErrNoTarget is returned when an invocation proceeds past the chain
// without a target.
var ErrNoTarget = errors.New("intercept: no target to proceed to")

type invocation struct {
	member Member
	args   []any
	ret    any
	err    error
	chain  []Interceptor
	next   int
	target Target
}

func (inv *invocation) Member() Member   { return inv.member }
func (inv *invocation) Arguments() []any { return inv.args }
func (inv *invocation) ReturnValue() any { return inv.ret }

func (inv *invocation) SetReturnValue(v any) { inv.ret = v }

func (inv *invocation) SetArgument(i int, v any) error {
	if i < 0 || i >= len(inv.args) {
		return fmt.Errorf("intercept: argument %d out of range for %s (%d arguments)", i, inv.member, len(inv.args))
	}
	inv.args[i] = v
	return nil
}

func (inv *invocation) Proceed() error {
	if inv.next < len(inv.chain) {
		ic := inv.chain[inv.next]
		inv.next++
		ic.Intercept(inv)
		inv.next--
		return inv.err
	}
	if inv.target == nil {
		inv.err = ErrNoTarget
		return inv.err
	}
	ret, err := inv.target(inv.args)
	inv.ret = ret
	inv.err = err
	return err
}

// Invoke routes a call to target through chain, outermost first. The
// arguments slice is copied; interceptors see and edit the copy.
func Invoke(member Member, target Target, args []any, chain ...Interceptor) (any, error) {
	inv := &invocation{
		member: member,
		args:   append([]any(nil), args...),
		chain:  chain,
		target: target,
	}
	err := inv.Proceed()
	return inv.ret, err
}
