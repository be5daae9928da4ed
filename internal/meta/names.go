package meta

import (
	"fmt"
	"strings"
)

// TypeName renders a reference for diagnostics and dumps. Generic
// parameters print as !Name (type-level) or !!Name (method-level); imports
// carry their scope in brackets.
func (m *Module) TypeName(id TypeID) string {
	var sb strings.Builder
	m.writeTypeName(&sb, id, 0)
	return sb.String()
}

func (m *Module) writeTypeName(sb *strings.Builder, id TypeID, depth int) {
	if id == NoType {
		sb.WriteString("<none>")
		return
	}
	if depth > 64 {
		sb.WriteString("...")
		return
	}
	r, ok := m.Ref(id)
	if !ok {
		fmt.Fprintf(sb, "<bad:%d>", id)
		return
	}
	switch r.Kind {
	case RefDef:
		if td := m.Type(r.Def); td != nil {
			sb.WriteString(td.FullName())
		} else {
			fmt.Fprintf(sb, "<def:%d>", r.Def)
		}
	case RefImport:
		if int(r.Import) < len(m.Imports) && r.Import != NoImport {
			imp := m.Imports[r.Import]
			sb.WriteByte('[')
			sb.WriteString(imp.Scope)
			sb.WriteByte(']')
			sb.WriteString(imp.FullName())
		} else {
			fmt.Fprintf(sb, "<import:%d>", r.Import)
		}
	case RefGenericParam:
		p := m.Param(r.Param)
		if p == nil {
			fmt.Fprintf(sb, "<param:%d>", r.Param)
			return
		}
		if p.Owner.Kind == OwnerMethod {
			sb.WriteString("!!")
		} else {
			sb.WriteString("!")
		}
		sb.WriteString(p.Name)
	case RefGenericInst:
		m.writeTypeName(sb, r.Elem, depth+1)
		sb.WriteByte('<')
		for i, a := range r.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			m.writeTypeName(sb, a, depth+1)
		}
		sb.WriteByte('>')
	case RefArray:
		m.writeTypeName(sb, r.Elem, depth+1)
		sb.WriteString("[]")
	case RefByRef:
		m.writeTypeName(sb, r.Elem, depth+1)
		sb.WriteByte('&')
	default:
		fmt.Fprintf(sb, "<%s>", r.Kind)
	}
}

// MethodName renders Declaring::Name(params) for a method definition.
func (m *Module) MethodName(id MethodID) string {
	md := m.Method(id)
	if md == nil {
		return fmt.Sprintf("<method:%d>", id)
	}
	var sb strings.Builder
	if td := m.Type(md.Declaring); td != nil {
		sb.WriteString(td.FullName())
		sb.WriteString("::")
	}
	sb.WriteString(md.Name)
	if len(md.GenericParams) > 0 {
		sb.WriteByte('<')
		for i, p := range md.GenericParams {
			if i > 0 {
				sb.WriteByte(',')
			}
			if gp := m.Param(p); gp != nil {
				sb.WriteString(gp.Name)
			}
		}
		sb.WriteByte('>')
	}
	sb.WriteByte('(')
	for i, p := range md.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.TypeName(p.Type))
	}
	sb.WriteByte(')')
	return sb.String()
}

// MethodRefName renders a method reference.
func (m *Module) MethodRefName(id MethodRefID) string {
	ref := m.MethodRef(id)
	if ref == nil {
		return fmt.Sprintf("<methodref:%d>", id)
	}
	var sb strings.Builder
	sb.WriteString(m.TypeName(ref.Declaring))
	sb.WriteString("::")
	sb.WriteString(ref.Name)
	if len(ref.GenericArgs) > 0 {
		sb.WriteByte('<')
		for i, a := range ref.GenericArgs {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(m.TypeName(a))
		}
		sb.WriteByte('>')
	}
	sb.WriteByte('(')
	for i, p := range ref.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.TypeName(p))
	}
	sb.WriteByte(')')
	return sb.String()
}

// FieldRefName renders a field reference.
func (m *Module) FieldRefName(id FieldRefID) string {
	ref := m.FieldRef(id)
	if ref == nil {
		return fmt.Sprintf("<fieldref:%d>", id)
	}
	return m.TypeName(ref.Declaring) + "::" + ref.Name
}
