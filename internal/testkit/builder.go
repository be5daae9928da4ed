package testkit

import (
	"shadowgen/internal/meta"
)

// Builder assembles small source modules for tests.
type Builder struct {
	M *meta.Module
}

// NewBuilder creates a builder over an empty module.
func NewBuilder(name string) *Builder {
	return &Builder{M: meta.NewModule(name)}
}

func (b *Builder) define(ns, name string, flags meta.TypeFlags, params []string) meta.DefID {
	id := b.M.AddType(meta.TypeDef{Namespace: ns, Name: name, Visibility: meta.VisPublic, Flags: flags})
	for _, p := range params {
		b.M.AddTypeParam(id, p, 0)
	}
	return id
}

// Class defines a public class deriving from System.Object.
func (b *Builder) Class(ns, name string, params ...string) meta.DefID {
	id := b.define(ns, name, 0, params)
	b.M.Type(id).Base = b.M.Object()
	return id
}

// Abstract defines a public abstract class.
func (b *Builder) Abstract(ns, name string, params ...string) meta.DefID {
	id := b.define(ns, name, meta.TypeAbstract, params)
	b.M.Type(id).Base = b.M.Object()
	return id
}

// Static defines a static class (abstract and sealed).
func (b *Builder) Static(ns, name string) meta.DefID {
	id := b.define(ns, name, meta.TypeAbstract|meta.TypeSealed, nil)
	b.M.Type(id).Base = b.M.Object()
	return id
}

// Interface defines a public interface.
func (b *Builder) Interface(ns, name string, params ...string) meta.DefID {
	return b.define(ns, name, meta.TypeInterface|meta.TypeAbstract, params)
}

// Struct defines a public value type.
func (b *Builder) Struct(ns, name string, params ...string) meta.DefID {
	id := b.define(ns, name, meta.TypeValueType|meta.TypeSealed, params)
	b.M.Type(id).Base = b.M.ValueTypeBase()
	return id
}

// Enum defines a public enum with consecutive literal values.
func (b *Builder) Enum(ns, name string, literals ...string) meta.DefID {
	id := b.define(ns, name, meta.TypeValueType|meta.TypeSealed|meta.TypeEnum, nil)
	b.M.Type(id).Base = b.M.EnumBase()
	b.M.AddField(id, meta.Field{
		Name:       "value__",
		Visibility: meta.VisPublic,
		Flags:      meta.FieldSpecialName | meta.FieldRTSpecialName,
		Type:       b.M.Int32(),
	})
	self := b.M.DefRef(id)
	for i, lit := range literals {
		b.M.AddField(id, meta.Field{
			Name:        lit,
			Visibility:  meta.VisPublic,
			Flags:       meta.FieldStatic | meta.FieldLiteral,
			Type:        self,
			HasConstant: true,
			Constant:    int64(i),
		})
	}
	return id
}

// Private marks a definition non-public.
func (b *Builder) Private(def meta.DefID) {
	b.M.Type(def).Visibility = meta.VisAssembly
}

// Ref references a definition without generic arguments.
func (b *Builder) Ref(def meta.DefID) meta.TypeID { return b.M.DefRef(def) }

// Self references a definition instantiated over its own parameters.
func (b *Builder) Self(def meta.DefID) meta.TypeID { return b.M.SelfRef(def) }

// Inst instantiates def with args.
func (b *Builder) Inst(def meta.DefID, args ...meta.TypeID) meta.TypeID {
	return b.M.Inst(b.M.DefRef(def), args...)
}

// TParam references the i-th generic parameter of def.
func (b *Builder) TParam(def meta.DefID, i int) meta.TypeID {
	return b.M.ParamRef(b.M.Type(def).GenericParams[i])
}

// MParam references the i-th generic parameter of method m.
func (b *Builder) MParam(m meta.MethodID, i int) meta.TypeID {
	return b.M.ParamRef(b.M.Method(m).GenericParams[i])
}

// Extends sets the base type.
func (b *Builder) Extends(def meta.DefID, base meta.TypeID) {
	b.M.Type(def).Base = base
}

// Implements appends to the implementation list.
func (b *Builder) Implements(def meta.DefID, itf meta.TypeID) {
	td := b.M.Type(def)
	td.Interfaces = append(td.Interfaces, itf)
}

// Constrain adds a constraint to the i-th generic parameter of def.
func (b *Builder) Constrain(def meta.DefID, i int, cons meta.TypeID) {
	gp := b.M.Param(b.M.Type(def).GenericParams[i])
	gp.Constraints = append(gp.Constraints, cons)
}

// Method adds a public instance method. On interfaces it is an abstract
// slot; elsewhere it is virtual with a trivial body.
func (b *Builder) Method(def meta.DefID, name string, ret meta.TypeID, params ...meta.TypeID) meta.MethodID {
	flags := meta.MethodHideBySig | meta.MethodVirtual
	iface := b.M.Type(def).IsInterface()
	if iface {
		flags |= meta.MethodAbstract | meta.MethodNewSlot
	}
	m := b.M.AddMethod(def, meta.Method{
		Name:       name,
		Visibility: meta.VisPublic,
		Flags:      flags,
		Return:     b.ret(ret),
		Params:     named(params),
	})
	if !iface {
		b.M.Method(m).Body = trivialBody()
	}
	return m
}

// Sealed adds a public non-virtual instance method.
func (b *Builder) Sealed(def meta.DefID, name string, ret meta.TypeID, params ...meta.TypeID) meta.MethodID {
	return b.M.AddMethod(def, meta.Method{
		Name:       name,
		Visibility: meta.VisPublic,
		Flags:      meta.MethodHideBySig,
		Return:     b.ret(ret),
		Params:     named(params),
		Body:       trivialBody(),
	})
}

// StaticMethod adds a public static method.
func (b *Builder) StaticMethod(def meta.DefID, name string, ret meta.TypeID, params ...meta.TypeID) meta.MethodID {
	return b.M.AddMethod(def, meta.Method{
		Name:       name,
		Visibility: meta.VisPublic,
		Flags:      meta.MethodStatic | meta.MethodHideBySig,
		Return:     b.ret(ret),
		Params:     named(params),
		Body:       trivialBody(),
	})
}

// Hidden adds a non-public method that must not be forwarded.
func (b *Builder) Hidden(def meta.DefID, name string) meta.MethodID {
	return b.M.AddMethod(def, meta.Method{
		Name:       name,
		Visibility: meta.VisPrivate,
		Flags:      meta.MethodHideBySig,
		Return:     b.M.Void(),
		Body:       trivialBody(),
	})
}

// Ctor adds a public instance constructor.
func (b *Builder) Ctor(def meta.DefID, params ...meta.TypeID) meta.MethodID {
	return b.M.AddMethod(def, meta.Method{
		Name:       meta.CtorName,
		Visibility: meta.VisPublic,
		Flags:      meta.MethodHideBySig | meta.MethodSpecialName | meta.MethodRTSpecialName,
		Return:     b.M.Void(),
		Params:     named(params),
		Body:       trivialBody(),
	})
}

// GenericMethod adds a public instance method with its own generic
// parameters; sig builds the signature from references to them.
func (b *Builder) GenericMethod(def meta.DefID, name string, params []string, sig func(ps []meta.TypeID) (meta.TypeID, []meta.TypeID)) meta.MethodID {
	m := b.Method(def, name, b.M.Void())
	ps := make([]meta.TypeID, len(params))
	for i, p := range params {
		ps[i] = b.M.ParamRef(b.M.AddMethodParam(m, p, 0))
	}
	ret, args := sig(ps)
	md := b.M.Method(m)
	md.Return = b.ret(ret)
	md.Params = named(args)
	return m
}

// Property adds a public property with a getter and optionally a setter.
func (b *Builder) Property(def meta.DefID, name string, t meta.TypeID, setter bool) meta.PropertyID {
	get := b.Method(def, "get_"+name, t)
	b.M.Method(get).Flags |= meta.MethodSpecialName
	var set meta.MethodID
	if setter {
		set = b.Method(def, "set_"+name, b.M.Void(), t)
		b.M.Method(set).Flags |= meta.MethodSpecialName
	}
	return b.M.AddProperty(def, meta.Property{Name: name, Type: t, Getter: get, Setter: set})
}

// Operator adds a special-name static method that is not an accessor.
func (b *Builder) Operator(def meta.DefID, name string, ret meta.TypeID, params ...meta.TypeID) meta.MethodID {
	m := b.StaticMethod(def, name, ret, params...)
	b.M.Method(m).Flags |= meta.MethodSpecialName
	return m
}

func (b *Builder) ret(t meta.TypeID) meta.TypeID {
	if t == meta.NoType {
		return b.M.Void()
	}
	return t
}

func named(types []meta.TypeID) []meta.Param {
	out := make([]meta.Param, len(types))
	for i, t := range types {
		out[i] = meta.Param{Name: string(rune('a' + i%26)), Type: t}
	}
	return out
}

func trivialBody() *meta.Body {
	return &meta.Body{Instrs: []meta.Instr{{Op: meta.OpRet}}}
}
