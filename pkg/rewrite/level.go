package rewrite

import (
	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
)

// level records the fork targets of a LANGUAGE_LEVEL comparison. The
// sentinel passes through untouched; the fork pass resolves it per target.
type level struct {
	link
	r       *rewriter
	version int
}

func (m *level) Emit(in bytecode.Insn) {
	switch in.Op {
	case bytecode.OpBipush, bytecode.OpSipush:
		m.version = int(in.Int)
	case bytecode.OpLdc:
		if v, ok := in.Const.(int32); ok {
			m.version = int(v)
		}
	}
	m.next.Emit(in)
	if !in.Op.IsJump() {
		return
	}
	v := m.version
	switch in.Op {
	case bytecode.OpIfeq, bytecode.OpIfne, bytecode.OpIflt, bytecode.OpIfge, bytecode.OpIfgt, bytecode.OpIfle:
		m.fork(0)
	case bytecode.OpIfIcmpeq, bytecode.OpIfIcmpne:
		m.fork(v)
		m.fork(v + 1)
	case bytecode.OpIfIcmpgt, bytecode.OpIfIcmple:
		m.fork(v + 1)
	case bytecode.OpIfIcmplt, bytecode.OpIfIcmpge:
		m.fork(v)
	default:
		return
	}
	m.r.exit(m)
}

// fork records a target. Targets are validated when first seen.
func (m *level) fork(target int) {
	c := m.r.cls
	if _, ok := c.forks[target]; ok {
		return
	}
	c.forks[target] = true
	if target < 9 {
		m.r.unsupported("Multi-release jar files are not supported at language level %d", target)
	} else if target < c.Version {
		m.r.unsupported("Class version %d.0 is not supported at language level %d", classfile.Major(c.Version), target)
	}
}

func (m *level) end() {
	m.r.fail("Method ended despite incomplete fork operation")
}
