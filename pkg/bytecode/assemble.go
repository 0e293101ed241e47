package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/types"
)

// Options describes the method a body belongs to.
type Options struct {
	Owner  string
	Static bool
	Name   string
	Desc   string
	// Major is the class file version. A StackMapTable is computed for 50
	// and up.
	Major     uint16
	Hierarchy Hierarchy
}

// Assemble encodes a body into a Code attribute, adding the constants it
// needs to pool. Jumps are widened where their offsets demand it, maximum
// stack and locals are recomputed, and unreachable instructions are replaced
// by NOP ... ATHROW and removed from exception ranges.
func Assemble(b *Body, pool *classfile.Pool, opts Options) (*classfile.Code, error) {
	norm := *b
	norm.Insns = make([]Insn, len(b.Insns))
	for i, in := range b.Insns {
		norm.Insns[i] = normalize(in)
	}
	b = &norm
	res, err := Analyze(opts.Owner, opts.Static, opts.Name, opts.Desc, b, opts.Hierarchy)
	if err != nil {
		return nil, err
	}
	as := &assembler{body: b, pool: pool, res: res, labels: b.Labels()}
	if err := as.resolve(); err != nil {
		return nil, err
	}
	as.markDead()
	if err := as.layout(); err != nil {
		return nil, err
	}
	code := &classfile.Code{
		MaxStack:  uint16(res.MaxStack),
		MaxLocals: uint16(res.MaxLocals),
	}
	if code.Code, err = as.emit(); err != nil {
		return nil, err
	}
	if len(code.Code) == 0 || len(code.Code) > math.MaxUint16 {
		return nil, fmt.Errorf("bytecode: code length %d out of range", len(code.Code))
	}
	if len(as.runs) > 0 && code.MaxStack == 0 {
		code.MaxStack = 1
	}
	code.Handlers = as.handlers()
	code.Lines = as.lines()
	code.Locals, err = as.locals(b.Locals, code)
	if err != nil {
		return nil, err
	}
	if code.LocalTypes, err = as.locals(b.LocalTypes, nil); err != nil {
		return nil, err
	}
	if opts.Major >= 50 {
		entry, err := EntryFrame(opts.Owner, opts.Static, opts.Name, opts.Desc)
		if err != nil {
			return nil, err
		}
		if code.Frames, err = as.frames(entry); err != nil {
			return nil, err
		}
	}
	return code, pool.Err()
}

type deadRun struct {
	first, last int // instruction indexes
	start, end  int // byte offsets
}

type assembler struct {
	body   *Body
	pool   *classfile.Pool
	res    *Analysis
	labels map[*Label]int

	index []uint16 // pool operand of each instruction
	dead  []bool
	runs  []deadRun
	wide  []bool // jumps that need the 32-bit form
	off   []int  // byte offset of each instruction, plus the end
}

func (as *assembler) resolve() error {
	as.index = make([]uint16, len(as.body.Insns))
	for i, in := range as.body.Insns {
		switch {
		case in.Op == OpLdc:
			switch c := in.Const.(type) {
			case int32:
				as.index[i] = as.pool.AddInteger(c)
			case float32:
				as.index[i] = as.pool.AddFloat(c)
			case int64:
				as.index[i] = as.pool.AddLong(c)
			case float64:
				as.index[i] = as.pool.AddDouble(c)
			case string:
				as.index[i] = as.pool.AddString(c)
			case types.Type:
				as.index[i] = as.pool.AddClass(c.Internal())
			case PoolRef:
				as.index[i] = c.Index
			default:
				return fmt.Errorf("bytecode: unsupported constant %T", in.Const)
			}
		case in.Op >= OpGetstatic && in.Op <= OpPutfield:
			as.index[i] = as.pool.AddFieldref(in.Owner, in.Name, in.Desc)
		case in.Op >= OpInvokevirtual && in.Op <= OpInvokeinterface:
			as.index[i] = as.pool.AddMethodref(in.Owner, in.Name, in.Desc, in.Itf || in.Op == OpInvokeinterface)
		case in.Op == OpInvokedynamic:
			as.index[i] = in.Indy
		case in.Op == OpNew || in.Op == OpAnewarray || in.Op == OpCheckcast ||
			in.Op == OpInstanceof || in.Op == OpMultianewarray:
			as.index[i] = as.pool.AddClass(in.Owner)
		}
	}
	return nil
}

// markDead groups unreachable instructions into runs of consecutive real
// instructions.
func (as *assembler) markDead() {
	as.dead = make([]bool, len(as.body.Insns))
	open := -1
	for i, in := range as.body.Insns {
		if !in.IsReal() {
			continue
		}
		if as.res.Reachable(i) {
			open = -1
			continue
		}
		as.dead[i] = true
		if open < 0 {
			as.runs = append(as.runs, deadRun{first: i})
			open = len(as.runs) - 1
		}
		as.runs[open].last = i
	}
}

func (as *assembler) size(i, pc int) int {
	in := as.body.Insns[i]
	if !in.IsReal() {
		return 0
	}
	if as.dead[i] {
		return 1
	}
	op := in.Op
	switch {
	case isLoadStore(op):
		switch {
		case in.Var <= 3:
			return 1
		case in.Var <= math.MaxUint8:
			return 2
		}
		return 4
	case op == OpRet:
		if in.Var <= math.MaxUint8 {
			return 2
		}
		return 4
	case op == OpIinc:
		if in.Var <= math.MaxUint8 && in.Int >= math.MinInt8 && in.Int <= math.MaxInt8 {
			return 3
		}
		return 6
	case op == OpLdc:
		switch in.Const.(type) {
		case int64, float64:
			return 3
		}
		if as.index[i] <= math.MaxUint8 {
			return 2
		}
		return 3
	case op.IsJump():
		if !as.wide[i] {
			return 3
		}
		if op.IsConditional() {
			return 8
		}
		return 5
	case op.IsSwitch():
		pad := (4 - (pc+1)%4) % 4
		if op == OpTableswitch {
			return 1 + pad + 12 + 4*len(in.Targets)
		}
		return 1 + pad + 8 + 8*len(in.Targets)
	case op == OpInvokeinterface || op == OpInvokedynamic:
		return 5
	}
	return 1 + op.OperandLen()
}

// layout assigns offsets, widening jumps until every displacement fits.
func (as *assembler) layout() error {
	n := len(as.body.Insns)
	as.wide = make([]bool, n)
	as.off = make([]int, n+1)
	for {
		pc := 0
		for i := 0; i < n; i++ {
			as.off[i] = pc
			pc += as.size(i, pc)
		}
		as.off[n] = pc
		changed := false
		for i, in := range as.body.Insns {
			if as.dead[i] || !in.Op.IsJump() || as.wide[i] {
				continue
			}
			t, ok := as.labels[in.Target]
			if !ok {
				return fmt.Errorf("bytecode: jump to undefined label %s", in.Target)
			}
			if d := as.off[t] - as.off[i]; d < math.MinInt16 || d > math.MaxInt16 {
				as.wide[i] = true
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

func (as *assembler) labelOffset(l *Label) (int, error) {
	i, ok := as.labels[l]
	if !ok {
		return 0, fmt.Errorf("bytecode: undefined label %s", l)
	}
	return as.off[i], nil
}

func (as *assembler) emit() ([]byte, error) {
	buf := make([]byte, 0, as.off[len(as.body.Insns)])
	u2 := func(v int) { buf = binary.BigEndian.AppendUint16(buf, uint16(v)) }
	u4 := func(v int) { buf = binary.BigEndian.AppendUint32(buf, uint32(int32(v))) }

	run := 0
	for i, in := range as.body.Insns {
		if !in.IsReal() {
			continue
		}
		pc := as.off[i]
		if len(buf) != pc {
			return nil, fmt.Errorf("bytecode: layout mismatch at insn %d", i)
		}
		if as.dead[i] {
			for run < len(as.runs) && as.runs[run].last < i {
				run++
			}
			if i == as.runs[run].last {
				buf = append(buf, byte(OpAthrow))
			} else {
				buf = append(buf, byte(OpNop))
			}
			continue
		}
		op := in.Op
		switch {
		case isLoadStore(op):
			base, short := OpIload, OpIload0
			if op >= OpIstore {
				base, short = OpIstore, OpIstore0
			}
			switch {
			case in.Var <= 3:
				buf = append(buf, byte(short+(op-base)*4+Opcode(in.Var)))
			case in.Var <= math.MaxUint8:
				buf = append(buf, byte(op), byte(in.Var))
			default:
				buf = append(buf, byte(OpWide), byte(op))
				u2(in.Var)
			}
		case op == OpRet:
			if in.Var <= math.MaxUint8 {
				buf = append(buf, byte(op), byte(in.Var))
			} else {
				buf = append(buf, byte(OpWide), byte(op))
				u2(in.Var)
			}
		case op == OpIinc:
			if as.size(i, pc) == 3 {
				buf = append(buf, byte(op), byte(in.Var), byte(int8(in.Int)))
			} else {
				buf = append(buf, byte(OpWide), byte(op))
				u2(in.Var)
				u2(int(in.Int))
			}
		case op == OpBipush, op == OpNewarray:
			buf = append(buf, byte(op), byte(in.Int))
		case op == OpSipush:
			buf = append(buf, byte(op))
			u2(int(in.Int))
		case op == OpLdc:
			switch {
			case as.size(i, pc) == 2:
				buf = append(buf, byte(OpLdc), byte(as.index[i]))
			case isWideConst(in.Const):
				buf = append(buf, byte(OpLdc2W))
				u2(int(as.index[i]))
			default:
				buf = append(buf, byte(OpLdcW))
				u2(int(as.index[i]))
			}
		case op.IsJump():
			t, err := as.labelOffset(in.Target)
			if err != nil {
				return nil, err
			}
			switch {
			case !as.wide[i]:
				buf = append(buf, byte(op))
				u2(t - pc)
			case op == OpGoto:
				buf = append(buf, byte(OpGotoW))
				u4(t - pc)
			case op == OpJsr:
				buf = append(buf, byte(OpJsrW))
				u4(t - pc)
			default:
				buf = append(buf, byte(op.Negate()))
				u2(8)
				buf = append(buf, byte(OpGotoW))
				u4(t - (pc + 3))
			}
		case op.IsSwitch():
			buf = append(buf, byte(op))
			for len(buf)%4 != 0 {
				buf = append(buf, 0)
			}
			def, err := as.labelOffset(in.Default)
			if err != nil {
				return nil, err
			}
			u4(def - pc)
			if op == OpTableswitch {
				u4(int(in.Low))
				u4(int(in.Low) + len(in.Targets) - 1)
			} else {
				u4(len(in.Targets))
			}
			for k, l := range in.Targets {
				t, err := as.labelOffset(l)
				if err != nil {
					return nil, err
				}
				if op == OpLookupswitch {
					u4(int(in.Keys[k]))
				}
				u4(t - pc)
			}
		case op == OpInvokeinterface:
			params, _, err := types.ParseMethod(in.Desc)
			if err != nil {
				return nil, err
			}
			buf = append(buf, byte(op))
			u2(int(as.index[i]))
			buf = append(buf, byte(1+types.Slots(params)), 0)
		case op == OpInvokedynamic:
			buf = append(buf, byte(op))
			u2(int(as.index[i]))
			buf = append(buf, 0, 0)
		case op == OpMultianewarray:
			buf = append(buf, byte(op))
			u2(int(as.index[i]))
			buf = append(buf, byte(in.Int))
		case op.OperandLen() == 2:
			buf = append(buf, byte(op))
			u2(int(as.index[i]))
		case op.OperandLen() == 0:
			buf = append(buf, byte(op))
		default:
			return nil, fmt.Errorf("bytecode: cannot encode %s", op)
		}
	}
	for i := range as.runs {
		as.runs[i].start = as.off[as.runs[i].first]
		as.runs[i].end = as.off[as.runs[i].last] + 1
	}
	return buf, nil
}

func isWideConst(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// handlers builds the exception table, cutting dead runs out of every
// range and dropping handlers that can no longer be entered.
func (as *assembler) handlers() []classfile.Handler {
	var out []classfile.Handler
	for _, h := range as.body.Handlers {
		target := as.labels[h.Target]
		if !as.res.Reachable(target) {
			continue
		}
		var typ uint16
		if h.Type != "" {
			typ = as.pool.AddClass(h.Type)
		}
		start, end := as.off[as.labels[h.Start]], as.off[as.labels[h.End]]
		for _, r := range as.runs {
			if r.end <= start || r.start >= end {
				continue
			}
			if r.start > start {
				out = append(out, classfile.Handler{Start: uint16(start), End: uint16(r.start), Target: uint16(as.off[target]), Type: typ})
			}
			start = r.end
		}
		if start < end {
			out = append(out, classfile.Handler{Start: uint16(start), End: uint16(end), Target: uint16(as.off[target]), Type: typ})
		}
	}
	return out
}

func (as *assembler) lines() []classfile.LineNumber {
	var out []classfile.LineNumber
	end := as.off[len(as.body.Insns)]
	for i, in := range as.body.Insns {
		if in.Op == OpLine && as.off[i] < end {
			out = append(out, classfile.LineNumber{PC: uint16(as.off[i]), Line: uint16(in.Line)})
		}
	}
	return out
}

// locals converts a local variable table. When code is given, MaxLocals is
// raised to cover every entry.
func (as *assembler) locals(in []Local, code *classfile.Code) ([]classfile.LocalVariable, error) {
	var out []classfile.LocalVariable
	for _, lv := range in {
		si, ok1 := as.labels[lv.Start]
		ei, ok2 := as.labels[lv.End]
		if !ok1 || !ok2 || as.off[ei] <= as.off[si] {
			continue
		}
		out = append(out, classfile.LocalVariable{
			PC:     uint16(as.off[si]),
			Length: uint16(as.off[ei] - as.off[si]),
			Name:   lv.Name,
			Desc:   lv.Desc,
			Index:  uint16(lv.Index),
		})
		if code != nil {
			if top := lv.Index + types.Type(lv.Desc).Size(); top > int(code.MaxLocals) {
				code.MaxLocals = uint16(top)
			}
		}
	}
	return out, nil
}
