package meta

import (
	"encoding/binary"
	"fmt"
)

// TypeID identifies an interned type reference inside a Module.
type TypeID uint32

// NoType marks the absence of a type reference.
const NoType TypeID = 0

// RefKind enumerates the closed set of type reference shapes.
type RefKind uint8

const (
	RefInvalid RefKind = iota
	RefDef
	RefImport
	RefGenericParam
	RefGenericInst
	RefArray
	RefByRef
)

func (k RefKind) String() string {
	switch k {
	case RefInvalid:
		return "invalid"
	case RefDef:
		return "def"
	case RefImport:
		return "import"
	case RefGenericParam:
		return "generic-param"
	case RefGenericInst:
		return "generic-inst"
	case RefArray:
		return "array"
	case RefByRef:
		return "byref"
	default:
		return fmt.Sprintf("RefKind(%d)", k)
	}
}

// TypeRef is a compact descriptor of a type reference. Which payload field
// is meaningful depends on Kind:
//
//	RefDef          Def
//	RefImport       Import
//	RefGenericParam Param
//	RefGenericInst  Elem (the generic head) and Args
//	RefArray        Elem
//	RefByRef        Elem
type TypeRef struct {
	Kind   RefKind
	Def    DefID
	Import ImportID
	Param  ParamID
	Elem   TypeID
	Args   []TypeID
}

type refKey struct {
	Kind    RefKind
	Payload uint32
	Elem    TypeID
	Args    string
}

func keyOf(r TypeRef) refKey {
	k := refKey{Kind: r.Kind, Elem: r.Elem}
	switch r.Kind {
	case RefDef:
		k.Payload = uint32(r.Def)
	case RefImport:
		k.Payload = uint32(r.Import)
	case RefGenericParam:
		k.Payload = uint32(r.Param)
	case RefGenericInst:
		k.Args = packArgs(r.Args)
	}
	return k
}

func packArgs(args []TypeID) string {
	buf := make([]byte, 0, 4*len(args))
	for _, a := range args {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a))
	}
	return string(buf)
}

// Intern returns the stable TypeID of a descriptor, allocating a new slot on
// first use. Structurally equal references always share one TypeID.
func (m *Module) Intern(r TypeRef) TypeID {
	if r.Kind == RefInvalid {
		return NoType
	}
	key := keyOf(r)
	if id, ok := m.refIndex[key]; ok {
		return id
	}
	if r.Kind == RefGenericInst {
		r.Args = append([]TypeID(nil), r.Args...)
	} else {
		r.Args = nil
	}
	id := TypeID(m.nextSlot(len(m.Refs)))
	m.Refs = append(m.Refs, r)
	m.refIndex[key] = id
	return id
}

// Ref returns the descriptor for id.
func (m *Module) Ref(id TypeID) (TypeRef, bool) {
	if id == NoType || int(id) >= len(m.Refs) {
		return TypeRef{}, false
	}
	return m.Refs[id], true
}

// MustRef panics when id is not a valid reference.
func (m *Module) MustRef(id TypeID) TypeRef {
	r, ok := m.Ref(id)
	if !ok {
		panic(fmt.Sprintf("meta: invalid TypeID %d in module %q", id, m.Name))
	}
	return r
}

// DefRef references a local definition.
func (m *Module) DefRef(def DefID) TypeID {
	return m.Intern(TypeRef{Kind: RefDef, Def: def})
}

// ImportRef references an imported definition.
func (m *Module) ImportRef(imp ImportID) TypeID {
	return m.Intern(TypeRef{Kind: RefImport, Import: imp})
}

// ParamRef references a generic parameter.
func (m *Module) ParamRef(p ParamID) TypeID {
	return m.Intern(TypeRef{Kind: RefGenericParam, Param: p})
}

// Inst applies a generic head to arguments. With no arguments the head is
// returned unchanged.
func (m *Module) Inst(head TypeID, args ...TypeID) TypeID {
	if len(args) == 0 {
		return head
	}
	return m.Intern(TypeRef{Kind: RefGenericInst, Elem: head, Args: args})
}

// ArrayOf references a single-dimension array of elem.
func (m *Module) ArrayOf(elem TypeID) TypeID {
	return m.Intern(TypeRef{Kind: RefArray, Elem: elem})
}

// ByRefOf references a managed pointer to elem.
func (m *Module) ByRefOf(elem TypeID) TypeID {
	return m.Intern(TypeRef{Kind: RefByRef, Elem: elem})
}

// SelfRef is the reference a definition uses for itself: the bare definition,
// or its generic instance over its own parameters.
func (m *Module) SelfRef(def DefID) TypeID {
	td := m.Type(def)
	if td == nil {
		return NoType
	}
	head := m.DefRef(def)
	if len(td.GenericParams) == 0 {
		return head
	}
	args := make([]TypeID, len(td.GenericParams))
	for i, p := range td.GenericParams {
		args[i] = m.ParamRef(p)
	}
	return m.Inst(head, args...)
}

// Head strips generic instantiation and returns the generic head reference.
// Non-instance references are their own head.
func (m *Module) Head(id TypeID) TypeID {
	r, ok := m.Ref(id)
	if !ok {
		return NoType
	}
	if r.Kind == RefGenericInst {
		return r.Elem
	}
	return id
}

// HeadDef returns the local definition a reference names, looking through
// generic instantiation.
func (m *Module) HeadDef(id TypeID) (DefID, bool) {
	r, ok := m.Ref(m.Head(id))
	if !ok || r.Kind != RefDef {
		return NoDef, false
	}
	return r.Def, true
}

// IsValueType reports whether a reference names a value type. Generic
// parameters are treated as reference types.
func (m *Module) IsValueType(id TypeID) bool {
	r, ok := m.Ref(m.Head(id))
	if !ok {
		return false
	}
	switch r.Kind {
	case RefDef:
		if td := m.Type(r.Def); td != nil {
			return td.IsValueType()
		}
	case RefImport:
		if int(r.Import) < len(m.Imports) {
			return m.Imports[r.Import].ValueType
		}
	}
	return false
}

// IsInterfaceRef reports whether a reference names an interface.
func (m *Module) IsInterfaceRef(id TypeID) bool {
	r, ok := m.Ref(m.Head(id))
	if !ok {
		return false
	}
	switch r.Kind {
	case RefDef:
		if td := m.Type(r.Def); td != nil {
			return td.IsInterface()
		}
	case RefImport:
		if int(r.Import) < len(m.Imports) {
			return m.Imports[r.Import].Interface
		}
	}
	return false
}
