package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/bridge/pkg/bytecode"
)

// labelMachine resolves new Label(id) and new Jump(id). The object itself
// is dropped; a label places a position, a jump becomes a GOTO to it.
type labelMachine struct {
	link
	r     *rewriter
	jump  bool
	id    any
	one   int
	state int
}

func (m *labelMachine) Emit(in bytecode.Insn) {
	r := m.r
	switch {
	case in.Op == bytecode.OpNew && m.state == 0:
		m.state = 1
		m.one = r.size() + 2
		return
	case in.Op == bytecode.OpDup && m.state == 1:
		m.state = 2
		m.one++
		return
	case m.state == 3 && (in.Op == bytecode.OpPop || in.Op == bytecode.OpAthrow || in.Op == bytecode.OpAreturn):
		m.exit()
		return
	case m.state <= 2 && m.id == nil && (in.Op == bytecode.OpLdc || (in.Op >= bytecode.OpIconstM1 && in.Op <= bytecode.OpIconst5) ||
		in.Op == bytecode.OpBipush || in.Op == bytecode.OpSipush):
		if in.Op == bytecode.OpLdc {
			m.id = in.Const
		} else {
			m.id, _ = in.IntValue()
		}
		return
	case in.Op.IsInvoke() && m.state <= 2 && r.size() == m.one && strings.HasSuffix(in.Desc, ")V"):
		m.resolve()
		if m.state == 2 {
			m.state = 3
		} else {
			m.exit()
		}
		return
	}
	m.next.Emit(in)
}

func (m *labelMachine) resolve() {
	r := m.r
	if m.id == nil {
		r.fail("No label name provided")
		return
	}
	l, ok := r.labels[m.id]
	if !ok {
		l = &userLabel{label: bytecode.NewLabel(), line: r.line}
		r.labels[m.id] = l
		r.order = append(r.order, m.id)
	}
	if m.jump {
		m.next.Emit(bytecode.Jump(bytecode.OpGoto, l.label))
		return
	}
	if l.defined {
		r.fail("Attempted redefinition of existing label [%s]", labelID(m.id))
		return
	}
	m.next.Emit(bytecode.Mark(l.label))
	l.defined = true
}

func (m *labelMachine) exit() {
	m.r.exit(m)
	if m.jump {
		m.r.cls.Invocations++
	}
	m.state = 4
}

func (m *labelMachine) end() {
	m.r.fail("Method ended despite incomplete label operation [0x0%d]", m.state)
}

// labelID formats a label id for messages. String ids are quoted.
func labelID(id any) string {
	if s, ok := id.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(id)
}
