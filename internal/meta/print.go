package meta

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const opColumn = 10

// Print writes a human-readable dump of every definition in m.
func Print(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "module %s\n", m.Name)
	for _, id := range m.TypeDefs() {
		printType(bw, m, id)
	}
	return bw.Flush()
}

func printType(w *bufio.Writer, m *Module, id DefID) {
	td := m.Type(id)
	fmt.Fprintf(w, "\n%s %s %s", td.Visibility, typeKeyword(td), td.FullName())
	if len(td.GenericParams) > 0 {
		w.WriteByte('<')
		for i, p := range td.GenericParams {
			if i > 0 {
				w.WriteByte(',')
			}
			w.WriteString(m.Param(p).Name)
		}
		w.WriteByte('>')
	}
	if td.Base != NoType {
		fmt.Fprintf(w, " extends %s", m.TypeName(td.Base))
	}
	if len(td.Interfaces) > 0 {
		names := make([]string, len(td.Interfaces))
		for i, itf := range td.Interfaces {
			names[i] = m.TypeName(itf)
		}
		fmt.Fprintf(w, " implements %s", strings.Join(names, ", "))
	}
	w.WriteString("\n")

	for _, p := range td.GenericParams {
		gp := m.Param(p)
		if len(gp.Constraints) == 0 {
			continue
		}
		names := make([]string, len(gp.Constraints))
		for i, c := range gp.Constraints {
			names[i] = m.TypeName(c)
		}
		fmt.Fprintf(w, "  where %s : %s\n", gp.Name, strings.Join(names, ", "))
	}
	for _, f := range td.Fields {
		fd := m.Field(f)
		fmt.Fprintf(w, "  field %s %s %s", fd.Visibility, m.TypeName(fd.Type), fd.Name)
		if fd.HasConstant {
			fmt.Fprintf(w, " = %d", fd.Constant)
		}
		w.WriteString("\n")
	}
	for _, p := range td.Properties {
		pd := m.Property(p)
		fmt.Fprintf(w, "  property %s %s", m.TypeName(pd.Type), pd.Name)
		if pd.Getter != NoMethod {
			w.WriteString(" get")
		}
		if pd.Setter != NoMethod {
			w.WriteString(" set")
		}
		w.WriteString("\n")
	}
	for _, md := range td.Methods {
		printMethod(w, m, md)
	}
}

func typeKeyword(td *TypeDef) string {
	switch {
	case td.IsEnum():
		return "enum"
	case td.IsInterface():
		return "interface"
	case td.IsValueType():
		return "struct"
	case td.IsAbstract():
		return "abstract class"
	default:
		return "class"
	}
}

func printMethod(w *bufio.Writer, m *Module, id MethodID) {
	md := m.Method(id)
	var mods []string
	if md.IsStatic() {
		mods = append(mods, "static")
	}
	if md.IsAbstract() {
		mods = append(mods, "abstract")
	} else if md.IsVirtual() {
		mods = append(mods, "virtual")
	}
	fmt.Fprintf(w, "  method %s ", md.Visibility)
	if len(mods) > 0 {
		w.WriteString(strings.Join(mods, " "))
		w.WriteByte(' ')
	}
	fmt.Fprintf(w, "%s %s\n", m.TypeName(md.Return), m.MethodName(id))
	for _, ov := range md.Overrides {
		fmt.Fprintf(w, "    .override %s\n", m.MethodRefName(ov))
	}
	if md.Body == nil {
		return
	}
	for i, l := range md.Body.Locals {
		fmt.Fprintf(w, "    .local %d %s\n", i, m.TypeName(l))
	}
	for i, in := range md.Body.Instrs {
		fmt.Fprintf(w, "    IL_%04x  %s%s\n", i, runewidth.FillRight(in.Op.String(), opColumn), operandText(m, in))
	}
}

func operandText(m *Module, in Instr) string {
	switch in.Kind {
	case OperandMethod:
		return m.MethodRefName(in.Method)
	case OperandField:
		return m.FieldRefName(in.Field)
	case OperandType:
		return m.TypeName(in.Type)
	case OperandLocal, OperandArg:
		return fmt.Sprintf("%d", in.Index)
	case OperandBranch:
		return fmt.Sprintf("IL_%04x", in.Index)
	case OperandConst:
		return fmt.Sprintf("%d", in.Const)
	case OperandString:
		return fmt.Sprintf("%q", in.Str)
	default:
		return ""
	}
}
