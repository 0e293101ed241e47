package bytecode

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/bridge/pkg/types"
)

// Label marks a position in a Body. Labels are compared by identity.
type Label struct {
	// Name is only used for debugging output.
	Name string
}

// NewLabel returns a fresh label.
func NewLabel() *Label {
	return &Label{}
}

func (l *Label) String() string {
	if l == nil {
		return "L<nil>"
	}
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("L%p", l)
}

// PoolRef is an ldc operand that is kept as a reference into the original
// constant pool: method handles, method types and dynamic constants.
type PoolRef struct {
	Index uint16
	Tag   byte
	Desc  string // field descriptor of the pushed value
}

// Insn is a symbolic instruction. Only the fields the opcode uses are set.
//
// Opcodes are normalized: the xLOAD_n/xSTORE_n forms are stored as xLOAD n,
// WIDE is folded into the instruction it widens, and LDC_W, LDC2_W, GOTO_W and
// JSR_W are stored as LDC, GOTO and JSR. The assembler picks the encoding.
type Insn struct {
	Op Opcode

	Var int   // local slot: loads, stores, IINC, RET
	Int int32 // BIPUSH/SIPUSH value, IINC delta, NEWARRAY type, MULTIANEWARRAY dimensions

	Owner string // member owner, or the class operand of NEW/ANEWARRAY/CHECKCAST/INSTANCEOF/MULTIANEWARRAY
	Name  string
	Desc  string
	Itf   bool
	Indy  uint16 // INVOKEDYNAMIC constant in the original pool

	Const any // LDC: int32, float32, int64, float64, string, types.Type or PoolRef

	Target  *Label   // jumps
	Default *Label   // switches
	Low     int32    // TABLESWITCH
	Keys    []int32  // LOOKUPSWITCH
	Targets []*Label // switches

	Label *Label // OpLabel
	Line  int    // OpLine
}

// NEWARRAY element types.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// Op returns an instruction without operands.
func Op(op Opcode) Insn {
	return Insn{Op: op}
}

// Var returns a local variable instruction.
func Var(op Opcode, slot int) Insn {
	return Insn{Op: op, Var: slot}
}

// Iinc returns an IINC instruction.
func Iinc(slot int, delta int32) Insn {
	return Insn{Op: OpIinc, Var: slot, Int: delta}
}

// TypeInsn returns NEW, ANEWARRAY, CHECKCAST or INSTANCEOF on an internal name.
func TypeInsn(op Opcode, internal string) Insn {
	return Insn{Op: op, Owner: internal}
}

// Field returns a field access instruction.
func Field(op Opcode, owner, name, desc string) Insn {
	return Insn{Op: op, Owner: owner, Name: name, Desc: desc}
}

// Method returns an invocation.
func Method(op Opcode, owner, name, desc string, itf bool) Insn {
	return Insn{Op: op, Owner: owner, Name: name, Desc: desc, Itf: itf}
}

// Jump returns a jump to l.
func Jump(op Opcode, l *Label) Insn {
	return Insn{Op: op, Target: l}
}

// Ldc returns an LDC of v.
func Ldc(v any) Insn {
	return Insn{Op: OpLdc, Const: v}
}

// Mark returns the pseudo instruction that places l.
func Mark(l *Label) Insn {
	return Insn{Op: OpLabel, Label: l}
}

// Line returns a line number pseudo instruction.
func Line(n int) Insn {
	return Insn{Op: OpLine, Line: n}
}

// Push returns the shortest instruction that pushes the int v.
func Push(v int32) Insn {
	switch {
	case v >= -1 && v <= 5:
		return Insn{Op: OpIconst0 + Opcode(v)}
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return Insn{Op: OpBipush, Int: v}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return Insn{Op: OpSipush, Int: v}
	}
	return Ldc(v)
}

// IntValue reports the value an int-pushing instruction pushes.
func (in Insn) IntValue() (int32, bool) {
	switch {
	case in.Op >= OpIconstM1 && in.Op <= OpIconst5:
		return int32(in.Op) - int32(OpIconst0), true
	case in.Op == OpBipush || in.Op == OpSipush:
		return in.Int, true
	case in.Op == OpLdc:
		v, ok := in.Const.(int32)
		return v, ok
	}
	return 0, false
}

// IsReal reports whether the instruction produces bytes.
func (in Insn) IsReal() bool {
	return !in.Op.IsPseudo()
}

// normalize folds the short and wide encodings onto the canonical opcode.
func normalize(in Insn) Insn {
	switch {
	case in.Op >= OpIload0 && in.Op <= OpAload3:
		k := in.Op - OpIload0
		in.Var = int(k % 4)
		in.Op = OpIload + k/4
	case in.Op >= OpIstore0 && in.Op <= OpAstore3:
		k := in.Op - OpIstore0
		in.Var = int(k % 4)
		in.Op = OpIstore + k/4
	case in.Op == OpLdcW || in.Op == OpLdc2W:
		in.Op = OpLdc
	case in.Op == OpGotoW:
		in.Op = OpGoto
	case in.Op == OpJsrW:
		in.Op = OpJsr
	}
	return in
}

func (in Insn) String() string {
	var b strings.Builder
	switch in.Op {
	case OpLabel:
		return in.Label.String() + ":"
	case OpLine:
		return fmt.Sprintf("LINE %d", in.Line)
	}
	b.WriteString(in.Op.String())
	switch {
	case in.Op == OpIinc:
		fmt.Fprintf(&b, " %d %d", in.Var, in.Int)
	case isLoadStore(in.Op) || in.Op == OpRet:
		fmt.Fprintf(&b, " %d", in.Var)
	case in.Op == OpBipush || in.Op == OpSipush || in.Op == OpNewarray:
		fmt.Fprintf(&b, " %d", in.Int)
	case in.Op == OpLdc:
		fmt.Fprintf(&b, " %#v", in.Const)
	case in.Op == OpNew || in.Op == OpAnewarray || in.Op == OpCheckcast || in.Op == OpInstanceof:
		b.WriteString(" " + in.Owner)
	case in.Op == OpMultianewarray:
		fmt.Fprintf(&b, " %s %d", in.Owner, in.Int)
	case in.Op >= OpGetstatic && in.Op <= OpInvokeinterface:
		fmt.Fprintf(&b, " %s.%s%s", in.Owner, in.Name, in.Desc)
	case in.Op == OpInvokedynamic:
		fmt.Fprintf(&b, " %s%s", in.Name, in.Desc)
	case in.Op.IsJump():
		b.WriteString(" " + in.Target.String())
	case in.Op.IsSwitch():
		fmt.Fprintf(&b, " default:%s %v", in.Default, in.Targets)
	}
	return b.String()
}

func isLoadStore(op Opcode) bool {
	return (op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore)
}

// constType returns the type an LDC operand pushes.
func constType(v any) (types.Type, error) {
	switch c := v.(type) {
	case int32:
		return types.Int, nil
	case float32:
		return types.Float, nil
	case int64:
		return types.Long, nil
	case float64:
		return types.Double, nil
	case string:
		return types.String, nil
	case types.Type:
		return types.Class, nil
	case PoolRef:
		return types.Type(c.Desc), nil
	}
	return "", fmt.Errorf("bytecode: unsupported constant %T", v)
}
