package meta

import (
	"strconv"
	"strings"
)

// Handles into the Module arenas. Zero is reserved in every arena and marks
// the absence of an entity.
type (
	DefID       uint32
	MethodID    uint32
	FieldID     uint32
	PropertyID  uint32
	ParamID     uint32
	ImportID    uint32
	MethodRefID uint32
	FieldRefID  uint32
)

const (
	NoDef       DefID       = 0
	NoMethod    MethodID    = 0
	NoField     FieldID     = 0
	NoProperty  PropertyID  = 0
	NoParam     ParamID     = 0
	NoImport    ImportID    = 0
	NoMethodRef MethodRefID = 0
	NoFieldRef  FieldRefID  = 0
)

// Visibility is the accessibility of a type or member.
type Visibility uint8

const (
	VisPrivate Visibility = iota
	VisAssembly
	VisFamily
	VisPublic
)

func (v Visibility) String() string {
	switch v {
	case VisPrivate:
		return "private"
	case VisAssembly:
		return "assembly"
	case VisFamily:
		return "family"
	case VisPublic:
		return "public"
	default:
		return "Visibility(" + strconv.Itoa(int(v)) + ")"
	}
}

// TypeFlags describe the shape of a type definition.
type TypeFlags uint16

const (
	TypeInterface TypeFlags = 1 << iota
	TypeAbstract
	TypeSealed
	TypeValueType
	TypeEnum
	TypeSpecialName
)

// MethodFlags describe dispatch and naming properties of a method.
type MethodFlags uint16

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodAbstract
	MethodFinal
	MethodNewSlot
	MethodHideBySig
	MethodSpecialName
	MethodRTSpecialName
)

// FieldFlags describe storage properties of a field.
type FieldFlags uint8

const (
	FieldStatic FieldFlags = 1 << iota
	FieldLiteral
	FieldInitOnly
	FieldSpecialName
	FieldRTSpecialName
)

// ParamFlags describe how an argument is passed.
type ParamFlags uint8

const (
	ParamIn ParamFlags = 1 << iota
	ParamOut
	ParamOptional
)

// GenericAttrs carry variance and special constraints of a generic parameter.
type GenericAttrs uint8

const (
	GenericCovariant GenericAttrs = 1 << iota
	GenericContravariant
	GenericReferenceType
	GenericValueType
	GenericDefaultCtor
)

// OwnerKind tells whether a generic parameter belongs to a type or a method.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerType
	OwnerMethod
)

// Owner identifies the declaration a generic parameter belongs to.
type Owner struct {
	Kind   OwnerKind
	Type   DefID
	Method MethodID
}

// GenericParam is a generic parameter slot of a type or method.
type GenericParam struct {
	Name        string
	Owner       Owner
	Position    uint32
	Attrs       GenericAttrs
	Constraints []TypeID
}

// GenericSlot pairs the real parameter of a doubled generic list with its
// witness. Witnesses only ever appear as instantiation arguments.
type GenericSlot struct {
	Real    ParamID
	Witness ParamID
}

// TypeDef is a type definition owned by a Module.
type TypeDef struct {
	Namespace     string
	Name          string
	Visibility    Visibility
	Flags         TypeFlags
	Base          TypeID
	Interfaces    []TypeID
	GenericParams []ParamID
	Slots         []GenericSlot
	Fields        []FieldID
	Methods       []MethodID
	Properties    []PropertyID
}

func (t *TypeDef) IsInterface() bool { return t.Flags&TypeInterface != 0 }
func (t *TypeDef) IsAbstract() bool { return t.Flags&TypeAbstract != 0 }
func (t *TypeDef) IsSealed() bool { return t.Flags&TypeSealed != 0 }
func (t *TypeDef) IsValueType() bool { return t.Flags&TypeValueType != 0 }
func (t *TypeDef) IsEnum() bool { return t.Flags&TypeEnum != 0 }
func (t *TypeDef) IsPublic() bool { return t.Visibility == VisPublic }

// Arity is the number of generic parameters a reference to t must supply.
func (t *TypeDef) Arity() int { return len(t.GenericParams) }

// FullName renders the namespace-qualified name with the arity suffix used
// by the binary format, e.g. "Collections.Map`2".
func (t *TypeDef) FullName() string {
	return QualifiedName(t.Namespace, t.Name, len(t.GenericParams))
}

// QualifiedName joins namespace, name and generic arity into a full name.
func QualifiedName(namespace, name string, arity int) string {
	var sb strings.Builder
	if namespace != "" {
		sb.WriteString(namespace)
		sb.WriteByte('.')
	}
	sb.WriteString(name)
	if arity > 0 {
		sb.WriteByte('`')
		sb.WriteString(strconv.Itoa(arity))
	}
	return sb.String()
}

// Param is a formal method parameter.
type Param struct {
	Name  string
	Type  TypeID
	Flags ParamFlags
}

// Method is a method definition owned by a Module.
type Method struct {
	Name          string
	Declaring     DefID
	Visibility    Visibility
	Flags         MethodFlags
	Return        TypeID
	Params        []Param
	GenericParams []ParamID
	Overrides     []MethodRefID
	Body          *Body
}

// Constructor names reserved by the binary format.
const (
	CtorName       = ".ctor"
	StaticCtorName = ".cctor"
)

func (m *Method) IsStatic() bool { return m.Flags&MethodStatic != 0 }
func (m *Method) IsVirtual() bool { return m.Flags&MethodVirtual != 0 }
func (m *Method) IsAbstract() bool { return m.Flags&MethodAbstract != 0 }
func (m *Method) IsSpecialName() bool { return m.Flags&MethodSpecialName != 0 }
func (m *Method) IsPublic() bool { return m.Visibility == VisPublic }

// IsConstructor reports instance and static constructors.
func (m *Method) IsConstructor() bool {
	return m.Name == CtorName || m.Name == StaticCtorName
}

// Field is a field definition owned by a Module.
type Field struct {
	Name        string
	Declaring   DefID
	Visibility  Visibility
	Flags       FieldFlags
	Type        TypeID
	HasConstant bool
	Constant    int64
}

// Property groups accessor methods under one name.
type Property struct {
	Name      string
	Declaring DefID
	Type      TypeID
	Getter    MethodID
	Setter    MethodID
}

// Import is a copy-on-import placeholder for a definition that lives in
// another module (Scope names that module).
type Import struct {
	Scope     string
	Namespace string
	Name      string
	Arity     uint32
	ValueType bool
	Interface bool
}

// FullName mirrors TypeDef.FullName for imported definitions.
func (i Import) FullName() string {
	return QualifiedName(i.Namespace, i.Name, int(i.Arity))
}

// MethodRef references a method, possibly through a generic instance of its
// declaring type. Return and Params are expressed as seen through that
// instantiation. GenericArgs is set for generic method instances.
type MethodRef struct {
	Declaring    TypeID
	Name         string
	HasThis      bool
	Return       TypeID
	Params       []TypeID
	GenericArity uint32
	GenericArgs  []TypeID
	Def          MethodID
}

// FieldRef references a field through its (possibly instantiated) declaring type.
type FieldRef struct {
	Declaring TypeID
	Name      string
	Type      TypeID
	Def       FieldID
}
