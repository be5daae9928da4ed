package meta

import (
	"fmt"

	"fortio.org/safecast"
)

// Op is an instruction opcode.
type Op uint8

const (
	OpNop Op = iota
	OpLdarg
	OpLdarga
	OpLdloc
	OpStloc
	OpLdnull
	OpLdcI4
	OpLdstr
	OpLdfld
	OpLdflda
	OpStfld
	OpCall
	OpCallvirt
	OpNewobj
	OpBox
	OpCastclass
	OpDup
	OpPop
	OpBr
	OpBrtrue
	OpBrfalse
	OpRet
)

var opNames = [...]string{
	OpNop:       "nop",
	OpLdarg:     "ldarg",
	OpLdarga:    "ldarga",
	OpLdloc:     "ldloc",
	OpStloc:     "stloc",
	OpLdnull:    "ldnull",
	OpLdcI4:     "ldc.i4",
	OpLdstr:     "ldstr",
	OpLdfld:     "ldfld",
	OpLdflda:    "ldflda",
	OpStfld:     "stfld",
	OpCall:      "call",
	OpCallvirt:  "callvirt",
	OpNewobj:    "newobj",
	OpBox:       "box",
	OpCastclass: "castclass",
	OpDup:       "dup",
	OpPop:       "pop",
	OpBr:        "br",
	OpBrtrue:    "brtrue",
	OpBrfalse:   "brfalse",
	OpRet:       "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// OperandKind tags the payload an instruction carries.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandMethod
	OperandField
	OperandType
	OperandLocal
	OperandArg
	OperandBranch
	OperandConst
	OperandString
)

// Operand returns the operand kind an opcode requires.
func (op Op) Operand() OperandKind {
	switch op {
	case OpLdarg, OpLdarga:
		return OperandArg
	case OpLdloc, OpStloc:
		return OperandLocal
	case OpLdcI4:
		return OperandConst
	case OpLdstr:
		return OperandString
	case OpLdfld, OpLdflda, OpStfld:
		return OperandField
	case OpCall, OpCallvirt, OpNewobj:
		return OperandMethod
	case OpBox, OpCastclass:
		return OperandType
	case OpBr, OpBrtrue, OpBrfalse:
		return OperandBranch
	default:
		return OperandNone
	}
}

// Instr is a single instruction. Index holds the local, argument or branch
// target (an instruction index) depending on the operand kind.
type Instr struct {
	Op     Op
	Kind   OperandKind
	Method MethodRefID
	Field  FieldRefID
	Type   TypeID
	Index  uint32
	Const  int64
	Str    string
}

// Body is an instruction sequence with its local variable signature.
type Body struct {
	Locals     []TypeID
	Instrs     []Instr
	InitLocals bool
}

// Label is a forward-referenceable branch target inside a BodyBuilder.
type Label int

type fixup struct {
	instr int
	label Label
}

// BodyBuilder assembles a Body, patching branch targets once labels are marked.
type BodyBuilder struct {
	body   Body
	marks  []int
	fixups []fixup
}

// NewBodyBuilder creates an empty builder.
func NewBodyBuilder() *BodyBuilder {
	return &BodyBuilder{}
}

// Local declares a local variable and returns its index.
func (b *BodyBuilder) Local(t TypeID) uint32 {
	b.body.Locals = append(b.body.Locals, t)
	b.body.InitLocals = true
	return mustIndex(len(b.body.Locals) - 1)
}

// Len is the number of instructions emitted so far.
func (b *BodyBuilder) Len() int { return len(b.body.Instrs) }

func (b *BodyBuilder) emit(in Instr) {
	in.Kind = in.Op.Operand()
	b.body.Instrs = append(b.body.Instrs, in)
}

// Op emits an instruction without operand.
func (b *BodyBuilder) Op(op Op) { b.emit(Instr{Op: op}) }

// Arg emits an argument access.
func (b *BodyBuilder) Arg(op Op, idx uint32) { b.emit(Instr{Op: op, Index: idx}) }

// Loc emits a local variable access.
func (b *BodyBuilder) Loc(op Op, idx uint32) { b.emit(Instr{Op: op, Index: idx}) }

// Method emits a call-like instruction.
func (b *BodyBuilder) Method(op Op, ref MethodRefID) { b.emit(Instr{Op: op, Method: ref}) }

// Field emits a field access.
func (b *BodyBuilder) Field(op Op, ref FieldRefID) { b.emit(Instr{Op: op, Field: ref}) }

// Type emits a type-operand instruction.
func (b *BodyBuilder) Type(op Op, t TypeID) { b.emit(Instr{Op: op, Type: t}) }

// Int emits ldc.i4.
func (b *BodyBuilder) Int(v int64) { b.emit(Instr{Op: OpLdcI4, Const: v}) }

// Str emits ldstr.
func (b *BodyBuilder) Str(s string) { b.emit(Instr{Op: OpLdstr, Str: s}) }

// NewLabel allocates an unmarked label.
func (b *BodyBuilder) NewLabel() Label {
	b.marks = append(b.marks, -1)
	return Label(len(b.marks) - 1)
}

// Mark binds l to the next emitted instruction.
func (b *BodyBuilder) Mark(l Label) {
	b.marks[l] = len(b.body.Instrs)
}

// Branch emits a branch to l.
func (b *BodyBuilder) Branch(op Op, l Label) {
	b.fixups = append(b.fixups, fixup{instr: len(b.body.Instrs), label: l})
	b.emit(Instr{Op: op})
}

// Finish resolves branch targets and returns the body.
func (b *BodyBuilder) Finish() (*Body, error) {
	for _, fx := range b.fixups {
		target := b.marks[fx.label]
		if target < 0 {
			return nil, fmt.Errorf("meta: branch at %d targets unmarked label %d", fx.instr, fx.label)
		}
		if target >= len(b.body.Instrs) {
			return nil, fmt.Errorf("meta: label %d marked past the end of the body", fx.label)
		}
		b.body.Instrs[fx.instr].Index = mustIndex(target)
	}
	out := b.body
	return &out, nil
}

func mustIndex(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("meta: body index overflow: %w", err))
	}
	return v
}
