package bytecode

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Verification type tags.
const (
	vtTop               = 0
	vtInteger           = 1
	vtFloat             = 2
	vtDouble            = 3
	vtLong              = 4
	vtNull              = 5
	vtUninitializedThis = 6
	vtObject            = 7
	vtUninitialized     = 8
)

// Frame types of the compressed StackMapTable encoding.
const (
	sameFrameMax      = 63
	sameLocals1Max    = 127
	sameLocals1Ext    = 247
	chopFrame         = 251 // minus the number of chopped locals
	sameFrameExtended = 251
	appendFrame       = 251 // plus the number of appended locals
	fullFrame         = 255
)

// vtypes folds a slot array into verification types: a long or double
// slot and its Top become one entry. Trailing Tops are dropped from locals.
func vtypes(slots []Value, locals bool) []Value {
	var out []Value
	for i := 0; i < len(slots); i++ {
		out = append(out, slots[i])
		if slots[i].IsWide() {
			i++
		}
	}
	if locals {
		for len(out) > 0 && out[len(out)-1] == Top {
			out = out[:len(out)-1]
		}
	}
	return out
}

// frameSites returns the instructions that start a basic block: branch and
// handler targets, and the instruction after an unconditional transfer.
func (as *assembler) frameSites() []int {
	insns := as.body.Insns
	next := make([]int, len(insns)+1)
	next[len(insns)] = -1
	for i := len(insns) - 1; i >= 0; i-- {
		if insns[i].IsReal() {
			next[i] = i
		} else {
			next[i] = next[i+1]
		}
	}
	need := make(map[int]bool)
	mark := func(l *Label) {
		if i, ok := as.labels[l]; ok && next[i] >= 0 {
			need[next[i]] = true
		}
	}
	for i, in := range insns {
		if !in.IsReal() || as.dead[i] {
			continue
		}
		switch {
		case in.Op.IsJump():
			mark(in.Target)
			// a widened conditional branches over its GOTO_W
			if as.wide[i] && in.Op.IsConditional() && next[i+1] >= 0 {
				need[next[i+1]] = true
			}
		case in.Op.IsSwitch():
			mark(in.Default)
			for _, l := range in.Targets {
				mark(l)
			}
		}
		if in.Op.IsTerminal() && next[i+1] >= 0 {
			need[next[i+1]] = true
		}
	}
	for _, h := range as.body.Handlers {
		if as.res.Reachable(as.labels[h.Target]) {
			mark(h.Target)
		}
	}
	for _, r := range as.runs {
		need[r.first] = true
	}

	var sites []int
	for i := range need {
		if !as.dead[i] || as.isRunStart(i) {
			sites = append(sites, i)
		}
	}
	slices.Sort(sites)
	return sites
}

func (as *assembler) isRunStart(i int) bool {
	for _, r := range as.runs {
		if r.first == i {
			return true
		}
	}
	return false
}

// frames encodes the StackMapTable payload.
func (as *assembler) frames(entry *Frame) ([]byte, error) {
	sites := as.frameSites()
	buf := binary.BigEndian.AppendUint16(nil, uint16(len(sites)))
	prev := vtypes(entry.Locals, true)
	last := -1
	for _, i := range sites {
		var locals, stack []Value
		if as.dead[i] {
			stack = []Value{Ref("java/lang/Throwable")}
		} else {
			f := as.res.Frames[i]
			locals, stack = vtypes(f.Locals, true), vtypes(f.Stack, false)
		}
		pc := as.off[i]
		delta := pc - last - 1
		last = pc

		var err error
		sameLocals := slices.Equal(locals, prev)
		switch {
		case sameLocals && len(stack) == 0:
			if delta <= sameFrameMax {
				buf = append(buf, byte(delta))
			} else {
				buf = append(buf, sameFrameExtended)
				buf = binary.BigEndian.AppendUint16(buf, uint16(delta))
			}
		case sameLocals && len(stack) == 1:
			if delta <= sameLocals1Max-64 {
				buf = append(buf, byte(64+delta))
			} else {
				buf = append(buf, sameLocals1Ext)
				buf = binary.BigEndian.AppendUint16(buf, uint16(delta))
			}
			buf, err = as.appendVType(buf, stack[0])
		case len(stack) == 0 && len(locals) < len(prev) && len(prev)-len(locals) <= 3 && slices.Equal(locals, prev[:len(locals)]):
			buf = append(buf, byte(chopFrame-(len(prev)-len(locals))))
			buf = binary.BigEndian.AppendUint16(buf, uint16(delta))
		case len(stack) == 0 && len(locals) > len(prev) && len(locals)-len(prev) <= 3 && slices.Equal(prev, locals[:len(prev)]):
			buf = append(buf, byte(appendFrame+(len(locals)-len(prev))))
			buf = binary.BigEndian.AppendUint16(buf, uint16(delta))
			buf, err = as.appendVTypes(buf, locals[len(prev):])
		default:
			buf = append(buf, fullFrame)
			buf = binary.BigEndian.AppendUint16(buf, uint16(delta))
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(locals)))
			if buf, err = as.appendVTypes(buf, locals); err == nil {
				buf = binary.BigEndian.AppendUint16(buf, uint16(len(stack)))
				buf, err = as.appendVTypes(buf, stack)
			}
		}
		if err != nil {
			return nil, err
		}
		prev = locals
	}
	return buf, nil
}

func (as *assembler) appendVTypes(buf []byte, vs []Value) ([]byte, error) {
	var err error
	for _, v := range vs {
		if buf, err = as.appendVType(buf, v); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (as *assembler) appendVType(buf []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindTop:
		return append(buf, vtTop), nil
	case KindInt:
		return append(buf, vtInteger), nil
	case KindFloat:
		return append(buf, vtFloat), nil
	case KindLong:
		return append(buf, vtLong), nil
	case KindDouble:
		return append(buf, vtDouble), nil
	case KindNull:
		return append(buf, vtNull), nil
	case KindUninitThis:
		return append(buf, vtUninitializedThis), nil
	case KindRef:
		buf = append(buf, vtObject)
		return binary.BigEndian.AppendUint16(buf, as.pool.AddClass(v.Name)), nil
	case KindUninit:
		buf = append(buf, vtUninitialized)
		return binary.BigEndian.AppendUint16(buf, uint16(as.off[v.Site])), nil
	}
	return nil, fmt.Errorf("bytecode: %s has no stack map encoding", v.Kind)
}
