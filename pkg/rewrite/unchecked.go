package rewrite

import (
	"strings"

	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/convert"
	"github.com/chazu/bridge/pkg/types"
)

// unchecked elides new Unchecked(throwable): the wrapped throwable takes the
// wrapper's place on the stack.
type unchecked struct {
	link
	r     *rewriter
	one   int
	state int // 0 before NEW, 1 after NEW, 2 after DUP
}

func (m *unchecked) Emit(in bytecode.Insn) {
	r := m.r
	switch {
	case in.Op == bytecode.OpNew && m.state == 0:
		m.state = 1
		m.one = r.size() + 2
		return
	case in.Op == bytecode.OpDup && m.state != 2:
		m.state = 2
		m.one++
		return
	case in.Op.IsInvoke() && r.size() == m.one && strings.HasSuffix(in.Desc, ")V"):
		if m.state == 2 && m.one >= 3 {
			s := r.frame.Stack
			s[m.one-3] = s[m.one-1]
		}
		r.exit(m)
		r.cls.Removals++
		return
	}
	m.next.Emit(in)
}

func (m *unchecked) end() {
	m.r.fail("Method ended despite incomplete throwable operation [%s]", [...]string{"NULL", "FALSE", "TRUE"}[m.state])
}

// cast resolves Unchecked.cast(value): the call is dropped and the value is
// converted once, to whatever the following checkcast, unboxing or pop asks
// for.
type cast struct {
	link
	r    *rewriter
	from *types.Node
	to   *types.Node
}

func (m *cast) Emit(in bytecode.Insn) {
	g := m.r.cls.Graph
	switch {
	case in.Op == bytecode.OpCheckcast && m.to == nil:
		m.to = g.LoadClass(in.Owner)
		return
	case in.Op.IsInvoke() && m.to != nil && types.IsBox(m.to.Type) && strings.HasSuffix(in.Name, "Value") &&
		types.PrimitiveSort(types.ObjectType(in.Owner)) < types.SortArray:
		if ret := types.ReturnType(in.Desc); ret.IsPrimitive() {
			m.to = g.Load(ret)
			return
		}
	case in.Op == bytecode.OpPop || in.Op == bytecode.OpPop2:
		m.to = g.Load(types.Void)
		m.done()
		return
	}
	m.done()
	m.next.Emit(in)
}

func (m *cast) done() {
	if m.to != nil {
		convert.Emit(m.from, m.to, m.next)
	}
	m.r.exit(m)
}

func (m *cast) end() {
	m.r.fail("Method ended despite incomplete cast operation")
}
