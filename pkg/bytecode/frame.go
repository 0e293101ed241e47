package bytecode

import (
	"errors"
	"fmt"

	"github.com/chazu/bridge/pkg/types"
)

// Kind is the verification type of one stack or local slot.
type Kind uint8

const (
	KindTop Kind = iota
	KindInt
	KindFloat
	KindLong
	KindDouble
	KindNull
	KindUninitThis
	KindUninit
	KindRef
	KindReturn // JSR return address
)

var kindNames = [...]string{"top", "int", "float", "long", "double", "null", "uninitializedThis", "uninitialized", "ref", "returnAddress"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one slot. Longs and doubles take two slots: the value followed
// by a Top.
type Value struct {
	Kind Kind
	Name string // internal name: Ref, Uninit (the class being created), UninitThis (the owner)
	Site int    // Uninit: the instruction index of the NEW
}

var (
	Top    = Value{Kind: KindTop}
	Int    = Value{Kind: KindInt}
	Float  = Value{Kind: KindFloat}
	Long   = Value{Kind: KindLong}
	Double = Value{Kind: KindDouble}
	Null   = Value{Kind: KindNull}
)

// Ref returns a reference value of an internal name or array descriptor.
func Ref(internal string) Value {
	return Value{Kind: KindRef, Name: internal}
}

// IsWide reports whether the value takes two slots.
func (v Value) IsWide() bool {
	return v.Kind == KindLong || v.Kind == KindDouble
}

// IsReference reports whether the value is an initialized reference or null.
func (v Value) IsReference() bool {
	return v.Kind == KindRef || v.Kind == KindNull
}

// Type returns the JVM type a slot holds. Null, Top and return addresses
// read as java/lang/Object.
func (v Value) Type() types.Type {
	switch v.Kind {
	case KindInt:
		return types.Int
	case KindFloat:
		return types.Float
	case KindLong:
		return types.Long
	case KindDouble:
		return types.Double
	case KindRef, KindUninit, KindUninitThis:
		return types.ObjectType(v.Name)
	}
	return types.Object
}

func (v Value) String() string {
	switch v.Kind {
	case KindRef:
		return v.Name
	case KindUninit:
		return fmt.Sprintf("uninitialized(%s@%d)", v.Name, v.Site)
	}
	return v.Kind.String()
}

// ValuesOf returns the slots a value of t occupies; none for void.
func ValuesOf(t types.Type) []Value {
	switch t.Sort() {
	case types.SortVoid:
		return nil
	case types.SortBoolean, types.SortChar, types.SortByte, types.SortShort, types.SortInt:
		return []Value{Int}
	case types.SortFloat:
		return []Value{Float}
	case types.SortLong:
		return []Value{Long, Top}
	case types.SortDouble:
		return []Value{Double, Top}
	}
	return []Value{Ref(t.Internal())}
}

// ErrUnderflow is returned when an instruction pops more than the stack holds.
var ErrUnderflow = errors.New("bytecode: stack underflow")

// Frame is the local variable array and operand stack ahead of an
// instruction.
type Frame struct {
	Locals []Value
	Stack  []Value
}

// EntryFrame returns the frame on method entry.
func EntryFrame(owner string, static bool, name, desc string) (*Frame, error) {
	params, _, err := types.ParseMethod(desc)
	if err != nil {
		return nil, err
	}
	f := &Frame{}
	if !static {
		if name == "<init>" && owner != "java/lang/Object" {
			f.Locals = append(f.Locals, Value{Kind: KindUninitThis, Name: owner})
		} else {
			f.Locals = append(f.Locals, Ref(owner))
		}
	}
	for _, p := range params {
		f.Locals = append(f.Locals, ValuesOf(p)...)
	}
	return f, nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Locals: append([]Value(nil), f.Locals...),
		Stack:  append([]Value(nil), f.Stack...),
	}
}

// Size returns the stack depth in slots.
func (f *Frame) Size() int {
	return len(f.Stack)
}

// Peek returns the slot i positions below the top of the stack.
func (f *Frame) Peek(i int) Value {
	if i < 0 || i >= len(f.Stack) {
		return Top
	}
	return f.Stack[len(f.Stack)-1-i]
}

// Push appends values to the stack.
func (f *Frame) Push(vs ...Value) {
	f.Stack = append(f.Stack, vs...)
}

// Pop removes n slots and returns them bottom first.
func (f *Frame) Pop(n int) ([]Value, error) {
	if n > len(f.Stack) {
		return nil, ErrUnderflow
	}
	out := append([]Value(nil), f.Stack[len(f.Stack)-n:]...)
	f.Stack = f.Stack[:len(f.Stack)-n]
	return out, nil
}

// Local returns slot n, Top when unset.
func (f *Frame) Local(n int) Value {
	if n < len(f.Locals) {
		return f.Locals[n]
	}
	return Top
}

// SetLocal stores v in slot n, and Top in n+1 when v is wide.
func (f *Frame) SetLocal(n int, v Value) {
	size := 1
	if v.IsWide() {
		size = 2
	}
	for len(f.Locals) < n+size {
		f.Locals = append(f.Locals, Top)
	}
	if n > 0 && f.Locals[n-1].IsWide() {
		f.Locals[n-1] = Top
	}
	f.Locals[n] = v
	if size == 2 {
		f.Locals[n+1] = Top
	}
}

// initialize replaces every copy of an uninitialized value once its
// constructor has run.
func (f *Frame) initialize(v Value) {
	done := Ref(v.Name)
	for i, s := range f.Locals {
		if s == v {
			f.Locals[i] = done
		}
	}
	for i, s := range f.Stack {
		if s == v {
			f.Stack[i] = done
		}
	}
}

var newarrayTypes = map[int32]string{
	TBoolean: "[Z", TChar: "[C", TFloat: "[F", TDouble: "[D",
	TByte: "[B", TShort: "[S", TInt: "[I", TLong: "[J",
}

// kinds of the arithmetic families, indexed by (op - first) % 4.
var arith = [4][]Value{{Int}, {Long, Top}, {Float}, {Double, Top}}

// Execute applies in to the frame. site identifies NEW instructions; the
// analyzer passes the instruction index.
func (f *Frame) Execute(in Insn, site int) error {
	op := in.Op
	pop := func(n int) error {
		_, err := f.Pop(n)
		return err
	}
	switch {
	case op.IsPseudo(), op == OpNop, op == OpGoto, op == OpRet, op == OpReturn:
		return nil
	case op == OpAconstNull:
		f.Push(Null)
	case op >= OpIconstM1 && op <= OpIconst5, op == OpBipush, op == OpSipush:
		f.Push(Int)
	case op == OpLconst0 || op == OpLconst1:
		f.Push(Long, Top)
	case op >= OpFconst0 && op <= OpFconst2:
		f.Push(Float)
	case op == OpDconst0 || op == OpDconst1:
		f.Push(Double, Top)
	case op == OpLdc:
		t, err := constType(in.Const)
		if err != nil {
			return err
		}
		f.Push(ValuesOf(t)...)
	case op == OpIload:
		f.Push(Int)
	case op == OpFload:
		f.Push(Float)
	case op == OpLload:
		f.Push(Long, Top)
	case op == OpDload:
		f.Push(Double, Top)
	case op == OpAload:
		f.Push(f.Local(in.Var))
	case op >= OpIaload && op <= OpSaload:
		vs, err := f.Pop(2)
		if err != nil {
			return err
		}
		switch op {
		case OpLaload:
			f.Push(Long, Top)
		case OpFaload:
			f.Push(Float)
		case OpDaload:
			f.Push(Double, Top)
		case OpAaload:
			f.Push(component(vs[0]))
		default:
			f.Push(Int)
		}
	case op >= OpIstore && op <= OpAstore:
		size := 1
		if op == OpLstore || op == OpDstore {
			size = 2
		}
		vs, err := f.Pop(size)
		if err != nil {
			return err
		}
		f.SetLocal(in.Var, vs[0])
	case op >= OpIastore && op <= OpSastore:
		n := 3
		if op == OpLastore || op == OpDastore {
			n = 4
		}
		return pop(n)
	case op == OpPop:
		return pop(1)
	case op == OpPop2:
		return pop(2)
	case op >= OpDup && op <= OpSwap:
		return f.shuffle(op)
	case op >= OpIadd && op <= OpDrem:
		k := (op - OpIadd) % 4
		if err := pop(2 * len(arith[k])); err != nil {
			return err
		}
		f.Push(arith[k]...)
	case op >= OpIneg && op <= OpDneg:
		k := (op - OpIneg) % 4
		if err := pop(len(arith[k])); err != nil {
			return err
		}
		f.Push(arith[k]...)
	case op >= OpIshl && op <= OpLushr:
		k := (op - OpIshl) % 2
		if err := pop(len(arith[k]) + 1); err != nil {
			return err
		}
		f.Push(arith[k]...)
	case op >= OpIand && op <= OpLxor:
		k := (op - OpIand) % 2
		if err := pop(2 * len(arith[k])); err != nil {
			return err
		}
		f.Push(arith[k]...)
	case op == OpIinc:
		f.SetLocal(in.Var, Int)
	case op >= OpI2l && op <= OpI2s:
		return f.convert(op)
	case op == OpLcmp || op == OpDcmpl || op == OpDcmpg:
		if err := pop(4); err != nil {
			return err
		}
		f.Push(Int)
	case op == OpFcmpl || op == OpFcmpg:
		if err := pop(2); err != nil {
			return err
		}
		f.Push(Int)
	case op >= OpIfeq && op <= OpIfle, op == OpIfnull, op == OpIfnonnull, op.IsSwitch():
		return pop(1)
	case op >= OpIfIcmpeq && op <= OpIfAcmpne:
		return pop(2)
	case op == OpJsr:
		f.Push(Value{Kind: KindReturn})
	case op == OpIreturn || op == OpFreturn || op == OpAreturn || op == OpAthrow:
		return pop(1)
	case op == OpLreturn || op == OpDreturn:
		return pop(2)
	case op == OpGetstatic:
		f.Push(ValuesOf(types.Type(in.Desc))...)
	case op == OpPutstatic:
		return pop(types.Type(in.Desc).Size())
	case op == OpGetfield:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(ValuesOf(types.Type(in.Desc))...)
	case op == OpPutfield:
		return pop(types.Type(in.Desc).Size() + 1)
	case op.IsInvoke():
		return f.invoke(in)
	case op == OpNew:
		f.Push(Value{Kind: KindUninit, Name: in.Owner, Site: site})
	case op == OpNewarray:
		if err := pop(1); err != nil {
			return err
		}
		name, ok := newarrayTypes[in.Int]
		if !ok {
			return fmt.Errorf("bytecode: bad newarray type %d", in.Int)
		}
		f.Push(Ref(name))
	case op == OpAnewarray:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(Ref(string(types.ArrayOf(types.ObjectType(in.Owner), 1))))
	case op == OpArraylength, op == OpInstanceof:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(Int)
	case op == OpCheckcast:
		if err := pop(1); err != nil {
			return err
		}
		f.Push(Ref(in.Owner))
	case op == OpMonitorenter || op == OpMonitorexit:
		return pop(1)
	case op == OpMultianewarray:
		if err := pop(int(in.Int)); err != nil {
			return err
		}
		f.Push(Ref(in.Owner))
	default:
		return fmt.Errorf("bytecode: cannot execute %s", op)
	}
	return nil
}

func component(array Value) Value {
	if array.Kind == KindRef && len(array.Name) > 1 && array.Name[0] == '[' {
		vs := ValuesOf(types.Type(array.Name[1:]))
		if len(vs) == 1 {
			return vs[0]
		}
	}
	if array.Kind == KindNull {
		return Null
	}
	return Ref("java/lang/Object")
}

func (f *Frame) convert(op Opcode) error {
	var from, to []Value
	switch op {
	case OpI2l:
		from, to = arith[0], arith[1]
	case OpI2f:
		from, to = arith[0], arith[2]
	case OpI2d:
		from, to = arith[0], arith[3]
	case OpL2i:
		from, to = arith[1], arith[0]
	case OpL2f:
		from, to = arith[1], arith[2]
	case OpL2d:
		from, to = arith[1], arith[3]
	case OpF2i:
		from, to = arith[2], arith[0]
	case OpF2l:
		from, to = arith[2], arith[1]
	case OpF2d:
		from, to = arith[2], arith[3]
	case OpD2i:
		from, to = arith[3], arith[0]
	case OpD2l:
		from, to = arith[3], arith[1]
	case OpD2f:
		from, to = arith[3], arith[2]
	default: // I2B, I2C, I2S
		from, to = arith[0], arith[0]
	}
	if _, err := f.Pop(len(from)); err != nil {
		return err
	}
	f.Push(to...)
	return nil
}

func (f *Frame) invoke(in Insn) error {
	params, ret, err := types.ParseMethod(in.Desc)
	if err != nil {
		return err
	}
	if _, err := f.Pop(types.Slots(params)); err != nil {
		return err
	}
	if in.Op != OpInvokestatic && in.Op != OpInvokedynamic {
		recv, err := f.Pop(1)
		if err != nil {
			return err
		}
		if in.Op == OpInvokespecial && in.Name == "<init>" {
			switch r := recv[0]; r.Kind {
			case KindUninit, KindUninitThis:
				f.initialize(r)
			}
		}
	}
	f.Push(ValuesOf(ret)...)
	return nil
}

var shuffleDepth = map[Opcode]int{OpDup: 1, OpDupX1: 2, OpDupX2: 3, OpDup2: 2, OpDup2X1: 3, OpDup2X2: 4, OpSwap: 2}

// shuffle runs the DUP family and SWAP on raw slots.
func (f *Frame) shuffle(op Opcode) error {
	s, err := f.Pop(shuffleDepth[op])
	if err != nil {
		return err
	}
	switch op {
	case OpDup:
		f.Push(s[0], s[0])
	case OpDupX1:
		f.Push(s[1], s[0], s[1])
	case OpDupX2:
		f.Push(s[2], s[0], s[1], s[2])
	case OpDup2:
		f.Push(s[0], s[1], s[0], s[1])
	case OpDup2X1:
		f.Push(s[1], s[2], s[0], s[1], s[2])
	case OpDup2X2:
		f.Push(s[2], s[3], s[0], s[1], s[2], s[3])
	case OpSwap:
		f.Push(s[1], s[0])
	}
	return nil
}
