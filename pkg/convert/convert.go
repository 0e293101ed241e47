// Package convert emits the instructions that turn a value of one type on
// the operand stack into a value of another: primitive widening and
// narrowing, boxing, unboxing, casts, and discarding.
package convert

import (
	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/types"
)

const (
	boolBox   = "java/lang/Boolean"
	charBox   = "java/lang/Character"
	numberBox = "java/lang/Number"
)

// Emit converts a value of from into to. Nothing is emitted when from is
// already assignable to to.
func Emit(from, to *types.Node, sink bytecode.Sink) {
	if from.Implements(to) {
		return
	}
	EmitTypes(from.Type, to.Type, sink)
}

// EmitTypes converts by type alone. Reference conversions always cast.
func EmitTypes(from, to types.Type, sink bytecode.Sink) {
	if from == to {
		return
	}
	a, b := from.Sort(), to.Sort()
	if a < types.SortArray {
		if b < types.SortArray {
			Primitive(a, b, sink)
			return
		}
	} else if b == types.SortVoid {
		sink.Emit(bytecode.Op(bytecode.OpPop))
		return
	}

	fromBox, toBox := types.IsBox(from), types.IsBox(to)
	if fromBox && toBox {
		s := types.PrimitiveSort(from)
		if types.PrimitiveSort(to) == types.SortVoid {
			s = types.SortVoid
		}
		unbox(from.Internal(), s, sink)
		a = s
	}

	if a < types.SortArray {
		if a == types.SortVoid {
			sink.Emit(bytecode.Op(bytecode.OpAconstNull))
			return
		}
		if toBox {
			s := types.PrimitiveSort(to)
			if s == types.SortVoid {
				Primitive(a, s, sink)
				sink.Emit(bytecode.Op(bytecode.OpAconstNull))
				return
			}
			Primitive(a, s, sink)
			a = s
		}
		p := types.Primitive(a)
		box := types.Box(p)
		sink.Emit(bytecode.Method(bytecode.OpInvokestatic, box.Internal(), "valueOf", types.MethodDesc(box, p), false))
		return
	}

	if b < types.SortArray {
		if fromBox {
			s := types.PrimitiveSort(from)
			unbox(from.Internal(), s, sink)
			Primitive(s, b, sink)
			return
		}
		owner := numberBox
		switch b {
		case types.SortBoolean:
			owner = boolBox
		case types.SortChar:
			owner = charBox
		}
		if from.Internal() != owner {
			sink.Emit(bytecode.TypeInsn(bytecode.OpCheckcast, owner))
		}
		unbox(owner, b, sink)
		return
	}

	sink.Emit(bytecode.TypeInsn(bytecode.OpCheckcast, to.Internal()))
}

func unbox(owner string, s types.Sort, sink bytecode.Sink) {
	if s == types.SortVoid {
		sink.Emit(bytecode.Op(bytecode.OpPop))
		return
	}
	p := types.Primitive(s)
	name := s.String() + "Value"
	sink.Emit(bytecode.Method(bytecode.OpInvokevirtual, owner, name, types.MethodDesc(p), false))
}

// Primitive converts between primitive sorts. Void as the source pushes the
// zero of the target; void as the target discards the value.
func Primitive(a, b types.Sort, sink bytecode.Sink) {
	op := func(o bytecode.Opcode) { sink.Emit(bytecode.Op(o)) }
	if a == b {
		return
	}
	if a == types.SortVoid {
		switch b {
		case types.SortFloat:
			op(bytecode.OpFconst0)
		case types.SortLong:
			op(bytecode.OpLconst0)
		case types.SortDouble:
			op(bytecode.OpDconst0)
		default:
			op(bytecode.OpIconst0)
		}
		return
	}
	if b <= types.SortInt && a < b {
		// widening inside the int family, except where char and the
		// signed types disagree on range
		switch {
		case a == types.SortChar && b == types.SortByte:
			op(bytecode.OpI2b)
		case a == types.SortChar && b == types.SortShort:
			op(bytecode.OpI2s)
		}
		return
	}
	switch a {
	case types.SortFloat:
		switch b {
		case types.SortVoid:
			op(bytecode.OpPop)
		case types.SortLong:
			op(bytecode.OpF2l)
		case types.SortDouble:
			op(bytecode.OpF2d)
		default:
			op(bytecode.OpF2i)
			Primitive(types.SortInt, b, sink)
		}
	case types.SortLong:
		switch b {
		case types.SortVoid:
			op(bytecode.OpPop2)
		case types.SortFloat:
			op(bytecode.OpL2f)
		case types.SortDouble:
			op(bytecode.OpL2d)
		default:
			op(bytecode.OpL2i)
			Primitive(types.SortInt, b, sink)
		}
	case types.SortDouble:
		switch b {
		case types.SortVoid:
			op(bytecode.OpPop2)
		case types.SortFloat:
			op(bytecode.OpD2f)
		case types.SortLong:
			op(bytecode.OpD2l)
		default:
			op(bytecode.OpD2i)
			Primitive(types.SortInt, b, sink)
		}
	default:
		switch b {
		case types.SortVoid:
			op(bytecode.OpPop)
		case types.SortBoolean:
		case types.SortChar:
			if a != types.SortByte {
				op(bytecode.OpI2c)
			}
		case types.SortByte:
			op(bytecode.OpI2b)
		case types.SortShort:
			op(bytecode.OpI2s)
		case types.SortFloat:
			op(bytecode.OpI2f)
		case types.SortLong:
			op(bytecode.OpI2l)
		case types.SortDouble:
			op(bytecode.OpI2d)
		}
	}
}

// Zero pushes the default value of t.
func Zero(t types.Type, sink bytecode.Sink) {
	if t.Sort() >= types.SortArray {
		sink.Emit(bytecode.Op(bytecode.OpAconstNull))
		return
	}
	Primitive(types.SortVoid, t.Sort(), sink)
}

// Load pushes local slot of type t.
func Load(t types.Type, slot int, sink bytecode.Sink) {
	sink.Emit(bytecode.Var(LoadOp(t), slot))
}

// LoadOp returns the load opcode for t.
func LoadOp(t types.Type) bytecode.Opcode {
	switch t.Sort() {
	case types.SortFloat:
		return bytecode.OpFload
	case types.SortLong:
		return bytecode.OpLload
	case types.SortDouble:
		return bytecode.OpDload
	case types.SortArray, types.SortObject:
		return bytecode.OpAload
	}
	return bytecode.OpIload
}

// ReturnOp returns the return opcode for t.
func ReturnOp(t types.Type) bytecode.Opcode {
	switch t.Sort() {
	case types.SortVoid:
		return bytecode.OpReturn
	case types.SortFloat:
		return bytecode.OpFreturn
	case types.SortLong:
		return bytecode.OpLreturn
	case types.SortDouble:
		return bytecode.OpDreturn
	case types.SortArray, types.SortObject:
		return bytecode.OpAreturn
	}
	return bytecode.OpIreturn
}

// Discard pops a value of t.
func Discard(t types.Type, sink bytecode.Sink) {
	switch t.Size() {
	case 1:
		sink.Emit(bytecode.Op(bytecode.OpPop))
	case 2:
		sink.Emit(bytecode.Op(bytecode.OpPop2))
	}
}
