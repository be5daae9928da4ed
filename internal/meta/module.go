package meta

import (
	"fmt"

	"fortio.org/safecast"
)

// CoreScope is the import scope of the core library.
const CoreScope = "corelib"

// Module owns every definition of one program unit plus the placeholders it
// uses to refer to definitions elsewhere. Index 0 of every arena is reserved.
//
// Pointers returned by Type, Method, Field, Property and Param stay valid only
// until the next allocation in the same arena.
type Module struct {
	Name string

	Defs       []TypeDef
	Methods    []Method
	Fields     []Field
	Properties []Property
	Params     []GenericParam
	Imports    []Import
	MethodRefs []MethodRef
	FieldRefs  []FieldRef
	Refs       []TypeRef

	refIndex    map[refKey]TypeID
	importIndex map[Import]ImportID
}

// NewModule creates an empty module with all arenas seeded.
func NewModule(name string) *Module {
	m := &Module{
		Name:       name,
		Defs:       make([]TypeDef, 1, 16),
		Methods:    make([]Method, 1, 32),
		Fields:     make([]Field, 1, 16),
		Properties: make([]Property, 1, 8),
		Params:     make([]GenericParam, 1, 8),
		Imports:    make([]Import, 1, 16),
		MethodRefs: make([]MethodRef, 1, 32),
		FieldRefs:  make([]FieldRef, 1, 16),
		Refs:       make([]TypeRef, 1, 64),
	}
	m.Reindex()
	return m
}

// Reindex rebuilds the interning tables from the arenas. Decoders call it
// after filling the exported slices.
func (m *Module) Reindex() {
	m.refIndex = make(map[refKey]TypeID, len(m.Refs))
	for i := 1; i < len(m.Refs); i++ {
		m.refIndex[keyOf(m.Refs[i])] = TypeID(m.nextSlot(i))
	}
	m.importIndex = make(map[Import]ImportID, len(m.Imports))
	for i := 1; i < len(m.Imports); i++ {
		m.importIndex[m.Imports[i]] = ImportID(m.nextSlot(i))
	}
}

func (m *Module) nextSlot(n int) uint32 {
	id, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("meta: arena overflow in module %q: %w", m.Name, err))
	}
	return id
}

// AddType appends a type definition and returns its handle.
func (m *Module) AddType(td TypeDef) DefID {
	id := DefID(m.nextSlot(len(m.Defs)))
	m.Defs = append(m.Defs, td)
	return id
}

// Type returns the definition for id or nil.
func (m *Module) Type(id DefID) *TypeDef {
	if id == NoDef || int(id) >= len(m.Defs) {
		return nil
	}
	return &m.Defs[id]
}

// TypeDefs returns the handles of all definitions in declaration order.
func (m *Module) TypeDefs() []DefID {
	out := make([]DefID, 0, len(m.Defs)-1)
	for i := 1; i < len(m.Defs); i++ {
		out = append(out, DefID(m.nextSlot(i)))
	}
	return out
}

// FindType looks a definition up by namespace, name and arity.
func (m *Module) FindType(namespace, name string, arity int) (DefID, bool) {
	for i := 1; i < len(m.Defs); i++ {
		td := &m.Defs[i]
		if td.Namespace == namespace && td.Name == name && len(td.GenericParams) == arity {
			return DefID(m.nextSlot(i)), true
		}
	}
	return NoDef, false
}

// AddMethod appends a method to its declaring type.
func (m *Module) AddMethod(owner DefID, md Method) MethodID {
	md.Declaring = owner
	id := MethodID(m.nextSlot(len(m.Methods)))
	m.Methods = append(m.Methods, md)
	if td := m.Type(owner); td != nil {
		td.Methods = append(td.Methods, id)
	}
	return id
}

// Method returns the method for id or nil.
func (m *Module) Method(id MethodID) *Method {
	if id == NoMethod || int(id) >= len(m.Methods) {
		return nil
	}
	return &m.Methods[id]
}

// AddField appends a field to its declaring type.
func (m *Module) AddField(owner DefID, f Field) FieldID {
	f.Declaring = owner
	id := FieldID(m.nextSlot(len(m.Fields)))
	m.Fields = append(m.Fields, f)
	if td := m.Type(owner); td != nil {
		td.Fields = append(td.Fields, id)
	}
	return id
}

// Field returns the field for id or nil.
func (m *Module) Field(id FieldID) *Field {
	if id == NoField || int(id) >= len(m.Fields) {
		return nil
	}
	return &m.Fields[id]
}

// AddProperty appends a property to its declaring type.
func (m *Module) AddProperty(owner DefID, p Property) PropertyID {
	p.Declaring = owner
	id := PropertyID(m.nextSlot(len(m.Properties)))
	m.Properties = append(m.Properties, p)
	if td := m.Type(owner); td != nil {
		td.Properties = append(td.Properties, id)
	}
	return id
}

// Property returns the property for id or nil.
func (m *Module) Property(id PropertyID) *Property {
	if id == NoProperty || int(id) >= len(m.Properties) {
		return nil
	}
	return &m.Properties[id]
}

// AddTypeParam appends a generic parameter to a type definition.
func (m *Module) AddTypeParam(owner DefID, name string, attrs GenericAttrs) ParamID {
	td := m.Type(owner)
	if td == nil {
		return NoParam
	}
	pos := m.nextSlot(len(td.GenericParams))
	id := ParamID(m.nextSlot(len(m.Params)))
	m.Params = append(m.Params, GenericParam{
		Name:     name,
		Owner:    Owner{Kind: OwnerType, Type: owner},
		Position: pos,
		Attrs:    attrs,
	})
	td = m.Type(owner)
	td.GenericParams = append(td.GenericParams, id)
	return id
}

// AddMethodParam appends a generic parameter to a method definition.
func (m *Module) AddMethodParam(owner MethodID, name string, attrs GenericAttrs) ParamID {
	md := m.Method(owner)
	if md == nil {
		return NoParam
	}
	pos := m.nextSlot(len(md.GenericParams))
	id := ParamID(m.nextSlot(len(m.Params)))
	m.Params = append(m.Params, GenericParam{
		Name:     name,
		Owner:    Owner{Kind: OwnerMethod, Method: owner},
		Position: pos,
		Attrs:    attrs,
	})
	md = m.Method(owner)
	md.GenericParams = append(md.GenericParams, id)
	return id
}

// Param returns the generic parameter for id or nil.
func (m *Module) Param(id ParamID) *GenericParam {
	if id == NoParam || int(id) >= len(m.Params) {
		return nil
	}
	return &m.Params[id]
}

// Import registers (or reuses) an import placeholder.
func (m *Module) Import(imp Import) ImportID {
	if id, ok := m.importIndex[imp]; ok {
		return id
	}
	id := ImportID(m.nextSlot(len(m.Imports)))
	m.Imports = append(m.Imports, imp)
	m.importIndex[imp] = id
	return id
}

// AddMethodRef appends a method reference.
func (m *Module) AddMethodRef(ref MethodRef) MethodRefID {
	id := MethodRefID(m.nextSlot(len(m.MethodRefs)))
	m.MethodRefs = append(m.MethodRefs, ref)
	return id
}

// MethodRef returns the method reference for id or nil.
func (m *Module) MethodRef(id MethodRefID) *MethodRef {
	if id == NoMethodRef || int(id) >= len(m.MethodRefs) {
		return nil
	}
	return &m.MethodRefs[id]
}

// AddFieldRef appends a field reference.
func (m *Module) AddFieldRef(ref FieldRef) FieldRefID {
	id := FieldRefID(m.nextSlot(len(m.FieldRefs)))
	m.FieldRefs = append(m.FieldRefs, ref)
	return id
}

// FieldRef returns the field reference for id or nil.
func (m *Module) FieldRef(id FieldRefID) *FieldRef {
	if id == NoFieldRef || int(id) >= len(m.FieldRefs) {
		return nil
	}
	return &m.FieldRefs[id]
}

// Corelib references a core library type.
func (m *Module) Corelib(namespace, name string, valueType bool) TypeID {
	return m.ImportRef(m.Import(Import{
		Scope:     CoreScope,
		Namespace: namespace,
		Name:      name,
		ValueType: valueType,
	}))
}

func (m *Module) Object() TypeID { return m.Corelib("System", "Object", false) }
func (m *Module) Void() TypeID { return m.Corelib("System", "Void", true) }
func (m *Module) ValueTypeBase() TypeID { return m.Corelib("System", "ValueType", false) }
func (m *Module) EnumBase() TypeID { return m.Corelib("System", "Enum", false) }
func (m *Module) Int32() TypeID { return m.Corelib("System", "Int32", true) }
func (m *Module) Bool() TypeID { return m.Corelib("System", "Boolean", true) }
func (m *Module) StringType() TypeID { return m.Corelib("System", "String", false) }

// IsVoid reports whether id references the core library void type.
func (m *Module) IsVoid(id TypeID) bool {
	r, ok := m.Ref(id)
	if !ok || r.Kind != RefImport || int(r.Import) >= len(m.Imports) {
		return false
	}
	imp := m.Imports[r.Import]
	return imp.Scope == CoreScope && imp.Namespace == "System" && imp.Name == "Void"
}
