package cleanup

import (
	"slices"
	"testing"

	"github.com/chazu/bridge/pkg/bytecode"
)

func ops(b *bytecode.Body) []bytecode.Opcode {
	var out []bytecode.Opcode
	for _, in := range b.Insns {
		out = append(out, in.Op)
	}
	return out
}

func TestDeadBlocks(t *testing.T) {
	l1 := bytecode.NewLabel()
	in := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Var(bytecode.OpIload, 0),
		bytecode.Jump(bytecode.OpIfeq, l1),
		bytecode.Op(bytecode.OpIconst1),
		bytecode.Op(bytecode.OpIreturn),
		bytecode.Op(bytecode.OpIconst2),
		bytecode.Op(bytecode.OpPop),
		bytecode.Mark(l1),
		bytecode.Op(bytecode.OpIconst0),
		bytecode.Op(bytecode.OpIreturn),
	}}
	out := Run(in, Options{})
	want := []bytecode.Opcode{
		bytecode.OpIload, bytecode.OpIfeq, bytecode.OpIconst1, bytecode.OpIreturn,
		bytecode.OpLabel, bytecode.OpIconst0, bytecode.OpIreturn,
	}
	if !slices.Equal(ops(out), want) {
		t.Errorf("ops = %v, want %v", ops(out), want)
	}
	if out.Insns[4].Label != l1 {
		t.Errorf("label = %v, want the branch target", out.Insns[4].Label)
	}
}

func TestDeadBlockBeforeReturn(t *testing.T) {
	l1 := bytecode.NewLabel()
	in := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Var(bytecode.OpIload, 0),
		bytecode.Jump(bytecode.OpIfeq, l1),
		bytecode.Op(bytecode.OpReturn),
		bytecode.Op(bytecode.OpIconst2),
		bytecode.Op(bytecode.OpPop),
		bytecode.Mark(l1),
		bytecode.Op(bytecode.OpReturn),
	}}
	out := Run(in, Options{})
	want := []bytecode.Opcode{
		bytecode.OpIload, bytecode.OpIfeq, bytecode.OpReturn, bytecode.OpLabel, bytecode.OpReturn,
	}
	if !slices.Equal(ops(out), want) {
		t.Errorf("ops = %v, want %v", ops(out), want)
	}
}

func TestGotoElision(t *testing.T) {
	next := bytecode.NewLabel()
	in := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Op(bytecode.OpIconst0),
		bytecode.Var(bytecode.OpIstore, 0),
		bytecode.Jump(bytecode.OpGoto, next),
		bytecode.Mark(next),
		bytecode.Op(bytecode.OpReturn),
	}}
	out := Run(in, Options{})
	want := []bytecode.Opcode{bytecode.OpIconst0, bytecode.OpIstore, bytecode.OpLabel, bytecode.OpReturn}
	if !slices.Equal(ops(out), want) {
		t.Errorf("ops = %v, want %v", ops(out), want)
	}
}

func TestForwardJumpKept(t *testing.T) {
	l1, l2 := bytecode.NewLabel(), bytecode.NewLabel()
	in := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Var(bytecode.OpIload, 0),
		bytecode.Jump(bytecode.OpIfeq, l1),
		bytecode.Jump(bytecode.OpGoto, l2),
		bytecode.Mark(l1),
		bytecode.Op(bytecode.OpIconst0),
		bytecode.Var(bytecode.OpIstore, 0),
		bytecode.Mark(l2),
		bytecode.Op(bytecode.OpReturn),
	}}
	out := Run(in, Options{})
	want := []bytecode.Opcode{
		bytecode.OpIload, bytecode.OpIfeq, bytecode.OpGoto, bytecode.OpLabel,
		bytecode.OpIconst0, bytecode.OpIstore, bytecode.OpLabel, bytecode.OpReturn,
	}
	if !slices.Equal(ops(out), want) {
		t.Fatalf("ops = %v, want %v", ops(out), want)
	}
	if out.Insns[2].Target != l2 {
		t.Errorf("goto target = %v, want %v", out.Insns[2].Target, l2)
	}
}

func TestLineNumbers(t *testing.T) {
	l := bytecode.NewLabel()
	in := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Line(5),
		bytecode.Op(bytecode.OpIconst0),
		bytecode.Var(bytecode.OpIstore, 0),
		bytecode.Jump(bytecode.OpGoto, l),
		bytecode.Line(6),
		bytecode.Op(bytecode.OpIconst1),
		bytecode.Op(bytecode.OpPop),
		bytecode.Mark(l),
		bytecode.Line(7),
		bytecode.Op(bytecode.OpReturn),
	}}
	tests := []struct {
		opts Options
		want []int
	}{
		{Options{}, []int{5, 7}},
		{Options{NoLines: true}, nil},
	}
	for _, tt := range tests {
		out := Run(in, tt.opts)
		var lines []int
		for _, in := range out.Insns {
			if in.Op == bytecode.OpLine {
				lines = append(lines, in.Line)
			}
		}
		if !slices.Equal(lines, tt.want) {
			t.Errorf("Run(%+v) lines = %v, want %v", tt.opts, lines, tt.want)
		}
	}
}

func TestHandlers(t *testing.T) {
	start, end, target := bytecode.NewLabel(), bytecode.NewLabel(), bytecode.NewLabel()
	handlers := []bytecode.Handler{{Start: start, End: end, Target: target, Type: "java/lang/Exception"}}

	empty := &bytecode.Body{Handlers: handlers, Insns: []bytecode.Insn{
		bytecode.Mark(start),
		bytecode.Mark(end),
		bytecode.Op(bytecode.OpReturn),
		bytecode.Mark(target),
		bytecode.Op(bytecode.OpAthrow),
	}}
	if out := Run(empty, Options{}); len(out.Handlers) != 0 {
		t.Errorf("empty range: Handlers = %v, want none", out.Handlers)
	}

	covered := &bytecode.Body{Handlers: handlers, Insns: []bytecode.Insn{
		bytecode.Mark(start),
		bytecode.Op(bytecode.OpIconst0),
		bytecode.Var(bytecode.OpIstore, 0),
		bytecode.Mark(end),
		bytecode.Op(bytecode.OpReturn),
		bytecode.Mark(target),
		bytecode.Var(bytecode.OpAstore, 0),
		bytecode.Op(bytecode.OpReturn),
	}}
	out := Run(covered, Options{})
	if len(out.Handlers) != 1 {
		t.Fatalf("Handlers = %v, want one", out.Handlers)
	}
	if !slices.Contains(ops(out), bytecode.OpAstore) {
		t.Errorf("handler code was dropped: %v", ops(out))
	}
}

func TestLocals(t *testing.T) {
	start, end := bytecode.NewLabel(), bytecode.NewLabel()
	in := &bytecode.Body{
		Locals: []bytecode.Local{{Start: start, End: end, Name: "x", Desc: "I", Index: 0}},
		Insns: []bytecode.Insn{
			bytecode.Op(bytecode.OpIconst0),
			bytecode.Var(bytecode.OpIstore, 0),
			bytecode.Mark(start),
			bytecode.Var(bytecode.OpIload, 0),
			bytecode.Op(bytecode.OpPop),
			bytecode.Mark(end),
			bytecode.Op(bytecode.OpReturn),
		},
	}
	if out := Run(in, Options{}); len(out.Locals) != 1 {
		t.Errorf("Locals = %v, want one", out.Locals)
	}
	if out := Run(in, Options{NoLocals: true}); len(out.Locals) != 0 {
		t.Errorf("NoLocals: Locals = %v, want none", out.Locals)
	}
}
