package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/types"
)

// insnLen returns the encoded length of the instruction at pc, or 0 when
// it is malformed or runs past the end of code.
func insnLen(code []byte, pc int) int {
	op := Opcode(code[pc])
	var n int
	switch op {
	case OpTableswitch, OpLookupswitch:
		base := pc + 1 + (4-(pc+1)%4)%4
		if base+12 > len(code) {
			return 0
		}
		if op == OpTableswitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0
			}
			n = base - pc + 12 + 4*int(int64(high)-int64(low)+1)
		} else {
			pairs := int32(binary.BigEndian.Uint32(code[base+4:]))
			if pairs < 0 {
				return 0
			}
			n = base - pc + 8 + 8*int(pairs)
		}
	case OpWide:
		if pc+1 >= len(code) {
			return 0
		}
		n = 4
		if Opcode(code[pc+1]) == OpIinc {
			n = 6
		}
	default:
		info, ok := opcodeInfoTable[op]
		if !ok || op.IsPseudo() || info.OperandLen < 0 {
			return 0
		}
		n = 1 + info.OperandLen
	}
	if pc+n > len(code) {
		return 0
	}
	return n
}

// Decode converts a Code attribute into a Body. Every branch target, handler
// boundary and local variable boundary becomes a label; line numbers become
// OpLine pseudo instructions ahead of the instruction they describe.
func Decode(code *classfile.Code, pool *classfile.Pool) (*Body, error) {
	data := code.Code
	starts := make(map[int]bool)
	for pc := 0; pc < len(data); {
		n := insnLen(data, pc)
		if n == 0 {
			return nil, fmt.Errorf("bytecode: malformed instruction %s at %d", Opcode(data[pc]), pc)
		}
		starts[pc] = true
		pc += n
	}

	labels := make(map[int]*Label)
	label := func(pc int) (*Label, error) {
		if !starts[pc] && pc != len(data) {
			return nil, fmt.Errorf("bytecode: offset %d is not an instruction boundary", pc)
		}
		l, ok := labels[pc]
		if !ok {
			l = NewLabel()
			labels[pc] = l
		}
		return l, nil
	}

	b := &Body{}
	d := decoder{data: data, pool: pool, label: label}
	insns := make(map[int]Insn, len(starts))
	for pc := 0; pc < len(data); pc += insnLen(data, pc) {
		in, err := d.decode(pc)
		if err != nil {
			return nil, fmt.Errorf("bytecode: %s at %d: %w", Opcode(data[pc]), pc, err)
		}
		insns[pc] = in
	}

	for _, h := range code.Handlers {
		var err error
		var bh Handler
		if bh.Start, err = label(int(h.Start)); err != nil {
			return nil, err
		}
		if bh.End, err = label(int(h.End)); err != nil {
			return nil, err
		}
		if bh.Target, err = label(int(h.Target)); err != nil {
			return nil, err
		}
		if h.Type != 0 {
			if bh.Type, err = pool.Class(h.Type); err != nil {
				return nil, err
			}
		}
		b.Handlers = append(b.Handlers, bh)
	}
	var err error
	if b.Locals, err = decodeLocals(code.Locals, label); err != nil {
		return nil, err
	}
	if b.LocalTypes, err = decodeLocals(code.LocalTypes, label); err != nil {
		return nil, err
	}

	lines := make(map[int][]int)
	for _, ln := range code.Lines {
		if starts[int(ln.PC)] {
			lines[int(ln.PC)] = append(lines[int(ln.PC)], int(ln.Line))
		}
	}

	for pc := 0; pc <= len(data); {
		if l, ok := labels[pc]; ok {
			b.Emit(Mark(l))
		}
		if pc == len(data) {
			break
		}
		for _, n := range lines[pc] {
			b.Emit(Line(n))
		}
		b.Emit(insns[pc])
		pc += insnLen(data, pc)
	}
	return b, nil
}

func decodeLocals(in []classfile.LocalVariable, label func(int) (*Label, error)) ([]Local, error) {
	var out []Local
	for _, lv := range in {
		start, err := label(int(lv.PC))
		if err != nil {
			return nil, err
		}
		end, err := label(int(lv.PC) + int(lv.Length))
		if err != nil {
			return nil, err
		}
		out = append(out, Local{Start: start, End: end, Name: lv.Name, Desc: lv.Desc, Index: int(lv.Index)})
	}
	return out, nil
}

type decoder struct {
	data  []byte
	pool  *classfile.Pool
	label func(int) (*Label, error)
}

func (d *decoder) u1(pc int) int { return int(d.data[pc]) }
func (d *decoder) u2(pc int) int { return int(binary.BigEndian.Uint16(d.data[pc:])) }
func (d *decoder) s2(pc int) int { return int(int16(binary.BigEndian.Uint16(d.data[pc:]))) }
func (d *decoder) s4(pc int) int { return int(int32(binary.BigEndian.Uint32(d.data[pc:]))) }
func (d *decoder) idx(pc int) uint16 { return binary.BigEndian.Uint16(d.data[pc:]) }

func (d *decoder) decode(pc int) (Insn, error) {
	op := Opcode(d.data[pc])
	in := Insn{Op: op}
	var err error
	switch {
	case op == OpBipush:
		in.Int = int32(int8(d.data[pc+1]))
	case op == OpSipush:
		in.Int = int32(d.s2(pc + 1))
	case op == OpNewarray:
		in.Int = int32(d.u1(pc + 1))
	case op == OpLdc:
		in.Const, err = d.constant(uint16(d.u1(pc + 1)))
	case op == OpLdcW || op == OpLdc2W:
		in.Const, err = d.constant(d.idx(pc + 1))
	case isLoadStore(op) || op == OpRet:
		in.Var = d.u1(pc + 1)
	case op == OpIinc:
		in.Var = d.u1(pc + 1)
		in.Int = int32(int8(d.data[pc+2]))
	case op == OpWide:
		in.Op = Opcode(d.data[pc+1])
		in.Var = d.u2(pc + 2)
		switch {
		case in.Op == OpIinc:
			in.Int = int32(d.s2(pc + 4))
		case isLoadStore(in.Op) || in.Op == OpRet:
		default:
			return in, fmt.Errorf("cannot widen %s", in.Op)
		}
	case op == OpGotoW || op == OpJsrW:
		in.Target, err = d.label(pc + d.s4(pc+1))
	case op.IsJump():
		in.Target, err = d.label(pc + d.s2(pc+1))
	case op >= OpGetstatic && op <= OpInvokeinterface:
		in.Owner, in.Name, in.Desc, err = d.pool.Member(d.idx(pc + 1))
		in.Itf = d.pool.At(d.idx(pc+1)).Tag == classfile.TagInterfaceMethodref
	case op == OpInvokedynamic:
		in.Indy = d.idx(pc + 1)
		c := d.pool.At(in.Indy)
		if c.Tag != classfile.TagInvokeDynamic {
			return in, fmt.Errorf("constant %d is not an invokedynamic", in.Indy)
		}
		in.Name, in.Desc, err = d.pool.NameAndType(c.Ref2)
	case op == OpNew || op == OpAnewarray || op == OpCheckcast || op == OpInstanceof:
		in.Owner, err = d.pool.Class(d.idx(pc + 1))
	case op == OpMultianewarray:
		in.Owner, err = d.pool.Class(d.idx(pc + 1))
		in.Int = int32(d.u1(pc + 3))
	case op.IsSwitch():
		err = d.decodeSwitch(pc, &in)
	}
	return normalize(in), err
}

func (d *decoder) decodeSwitch(pc int, in *Insn) error {
	base := pc + 1 + (4-(pc+1)%4)%4
	var err error
	if in.Default, err = d.label(pc + d.s4(base)); err != nil {
		return err
	}
	if in.Op == OpTableswitch {
		in.Low = int32(d.s4(base + 4))
		high := int32(d.s4(base + 8))
		for i := 0; i <= int(high-in.Low); i++ {
			l, err := d.label(pc + d.s4(base+12+4*i))
			if err != nil {
				return err
			}
			in.Targets = append(in.Targets, l)
		}
		return nil
	}
	pairs := d.s4(base + 4)
	for i := 0; i < pairs; i++ {
		in.Keys = append(in.Keys, int32(d.s4(base+8+8*i)))
		l, err := d.label(pc + d.s4(base+12+8*i))
		if err != nil {
			return err
		}
		in.Targets = append(in.Targets, l)
	}
	return nil
}

func (d *decoder) constant(i uint16) (any, error) {
	c := d.pool.At(i)
	switch c.Tag {
	case classfile.TagClass:
		name, err := d.pool.Class(i)
		return types.ObjectType(name), err
	case classfile.TagMethodHandle:
		return PoolRef{Index: i, Tag: c.Tag, Desc: "Ljava/lang/invoke/MethodHandle;"}, nil
	case classfile.TagMethodType:
		return PoolRef{Index: i, Tag: c.Tag, Desc: "Ljava/lang/invoke/MethodType;"}, nil
	case classfile.TagDynamic:
		_, desc, err := d.pool.NameAndType(c.Ref2)
		return PoolRef{Index: i, Tag: c.Tag, Desc: desc}, err
	}
	return d.pool.Value(i)
}
