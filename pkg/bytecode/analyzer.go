package bytecode

import (
	"fmt"
)

// Hierarchy answers the one class-hierarchy question frame merging needs.
type Hierarchy interface {
	CommonSuper(a, b string) string
}

// Analysis is the result of a data-flow pass over a body.
type Analysis struct {
	// Frames[i] is the state ahead of Insns[i], or nil when the instruction
	// cannot be reached.
	Frames    []*Frame
	MaxStack  int
	MaxLocals int
}

// Reachable reports whether instruction i can execute.
func (a *Analysis) Reachable(i int) bool {
	return i < len(a.Frames) && a.Frames[i] != nil
}

type analyzer struct {
	body    *Body
	hier    Hierarchy
	labels  map[*Label]int
	frames  []*Frame
	queued  []bool
	queue   []int
	catches [][]Handler // handlers covering each instruction
	res     *Analysis
}

// Analyze computes the frame ahead of every instruction of body. Subroutines
// (JSR/RET) are not supported.
func Analyze(owner string, static bool, name, desc string, body *Body, h Hierarchy) (*Analysis, error) {
	entry, err := EntryFrame(owner, static, name, desc)
	if err != nil {
		return nil, err
	}
	n := len(body.Insns)
	a := &analyzer{
		body:    body,
		hier:    h,
		labels:  body.Labels(),
		frames:  make([]*Frame, n),
		queued:  make([]bool, n),
		catches: make([][]Handler, n),
		res:     &Analysis{MaxLocals: len(entry.Locals)},
	}
	for _, hd := range body.Handlers {
		start, ok1 := a.labels[hd.Start]
		end, ok2 := a.labels[hd.End]
		if _, ok3 := a.labels[hd.Target]; !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("bytecode: handler refers to a label outside the body")
		}
		for i := start; i < end; i++ {
			a.catches[i] = append(a.catches[i], hd)
		}
	}
	if n == 0 {
		a.res.Frames = a.frames
		return a.res, nil
	}
	if err := a.merge(0, entry); err != nil {
		return nil, err
	}
	for len(a.queue) > 0 {
		i := a.queue[0]
		a.queue = a.queue[1:]
		a.queued[i] = false
		if err := a.step(i); err != nil {
			return nil, fmt.Errorf("bytecode: %s (insn %d): %w", body.Insns[i].Op, i, err)
		}
	}
	a.res.Frames = a.frames
	return a.res, nil
}

func (a *analyzer) target(l *Label) (int, error) {
	i, ok := a.labels[l]
	if !ok {
		return 0, fmt.Errorf("jump to undefined label %s", l)
	}
	return i, nil
}

func (a *analyzer) step(i int) error {
	in := a.body.Insns[i]
	before := a.frames[i]
	after := before.Clone()
	if err := after.Execute(in, i); err != nil {
		return err
	}
	a.res.MaxStack = max(a.res.MaxStack, len(before.Stack), len(after.Stack))
	a.res.MaxLocals = max(a.res.MaxLocals, len(after.Locals))

	if in.IsReal() {
		for _, h := range a.catches[i] {
			t, _ := a.target(h.Target)
			typ := h.Type
			if typ == "" {
				typ = "java/lang/Throwable"
			}
			for _, locals := range [][]Value{before.Locals, after.Locals} {
				if err := a.merge(t, &Frame{Locals: locals, Stack: []Value{Ref(typ)}}); err != nil {
					return err
				}
			}
		}
	}

	switch op := in.Op; {
	case op == OpJsr || op == OpRet:
		return fmt.Errorf("subroutines are not supported")
	case op == OpGoto:
		t, err := a.target(in.Target)
		if err != nil {
			return err
		}
		return a.merge(t, after)
	case op.IsConditional():
		t, err := a.target(in.Target)
		if err != nil {
			return err
		}
		if err := a.merge(t, after); err != nil {
			return err
		}
	case op.IsSwitch():
		for _, l := range append([]*Label{in.Default}, in.Targets...) {
			t, err := a.target(l)
			if err != nil {
				return err
			}
			if err := a.merge(t, after); err != nil {
				return err
			}
		}
		return nil
	case op.IsReturn() || op == OpAthrow:
		return nil
	}
	if i+1 >= len(a.body.Insns) {
		return fmt.Errorf("execution falls off the end of the code")
	}
	return a.merge(i+1, after)
}

// merge folds f into the frame at i and queues i when that frame changed.
func (a *analyzer) merge(i int, f *Frame) error {
	old := a.frames[i]
	if old == nil {
		a.frames[i] = f.Clone()
		a.enqueue(i)
		return nil
	}
	if len(old.Stack) != len(f.Stack) {
		return fmt.Errorf("inconsistent stack height %d != %d at insn %d", len(old.Stack), len(f.Stack), i)
	}
	changed := false
	for j := range old.Stack {
		if v := a.mergeValue(old.Stack[j], f.Stack[j]); v != old.Stack[j] {
			old.Stack[j] = v
			changed = true
		}
	}
	// Slots one side never set are Top.
	if len(old.Locals) > len(f.Locals) {
		for j := len(f.Locals); j < len(old.Locals); j++ {
			if old.Locals[j] != Top {
				old.Locals[j] = Top
				changed = true
			}
		}
	}
	for j := 0; j < len(old.Locals) && j < len(f.Locals); j++ {
		if v := a.mergeValue(old.Locals[j], f.Locals[j]); v != old.Locals[j] {
			old.Locals[j] = v
			changed = true
		}
	}
	if changed {
		a.enqueue(i)
	}
	return nil
}

func (a *analyzer) enqueue(i int) {
	if !a.queued[i] {
		a.queued[i] = true
		a.queue = append(a.queue, i)
	}
}

func (a *analyzer) mergeValue(x, y Value) Value {
	switch {
	case x == y:
		return x
	case x.Kind == KindNull && y.Kind == KindRef:
		return y
	case x.Kind == KindRef && y.Kind == KindNull:
		return x
	case x.Kind == KindRef && y.Kind == KindRef:
		if a.hier == nil {
			return Ref("java/lang/Object")
		}
		return Ref(a.hier.CommonSuper(x.Name, y.Name))
	}
	return Top
}
