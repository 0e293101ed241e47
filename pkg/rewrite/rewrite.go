// Package rewrite resolves the marker expressions of the bridge runtime in
// method bodies.
//
// A method body is replayed through a chain of pattern machines. The
// rewriter simulates the operand stack of the input stream, and every
// instruction is offered to the innermost machine before it executes, so a
// machine always sees the stack as it was ahead of the instruction. A
// machine either consumes an instruction or forwards it outward; past the
// outermost machine instructions reach the output body. Machines are pushed
// when their opening instruction appears and removed once their pattern is
// complete.
//
// Recognized patterns:
//
//	new bridge/Invocation ...        statically resolved call, field access,
//	                                 constructor, array creation, class
//	                                 literal or instanceof
//	new bridge/Label, bridge/Jump    named labels and gotos
//	new bridge/Unchecked             elided throwable wrapper
//	Unchecked.check(), .cast(..)     elided markers
//	Invocation.LANGUAGE_LEVEL        multi-release fork sentinel, kept intact
//	                                 for the fork pass and recorded here
package rewrite

import (
	"fmt"
	"slices"
	"sort"

	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.rewrite")

// Marker runtime classes.
const (
	InvocationClass = "bridge/Invocation"
	executorClass   = "bridge/Invocation$Executor"
	accessorClass   = "bridge/Invocation$Accessor"
	labelClass      = "bridge/Label"
	jumpClass       = "bridge/Jump"
	UncheckedClass  = "bridge/Unchecked"

	LanguageLevel = "LANGUAGE_LEVEL"
	castDesc      = "(Ljava/lang/Object;)Ljava/lang/Object;"
)

// IsLevel reports whether in reads the language level sentinel.
func IsLevel(in bytecode.Insn) bool {
	return in.Op == bytecode.OpGetstatic && in.Owner == InvocationClass && in.Name == LanguageLevel
}

// Counters tallies what processing a class did.
type Counters struct {
	Forks       int
	Bridges     int
	Invocations int
	Adjustments int
	Removals    int
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.Forks += o.Forks
	c.Bridges += o.Bridges
	c.Invocations += o.Invocations
	c.Adjustments += o.Adjustments
	c.Removals += o.Removals
}

// Class is the per-class context of the rewrite. It is not safe for
// concurrent use; classes are processed independently.
type Class struct {
	Graph   *types.Graph
	Name    string
	Node    *types.Node
	Data    *scan.ClassData
	Source  string
	Version int
	Counters

	forks map[int]bool // language level -> multi-release
}

// NewClass prepares the rewrite of c. The class should already be defined
// in g by the member scan; otherwise it is scanned here.
func NewClass(g *types.Graph, c *classfile.Class) *Class {
	node := g.LoadClass(c.Name)
	data := scan.Of(node)
	if data == nil {
		data = scan.Scan(c)
	}
	v := classfile.Version(c.Major)
	return &Class{
		Graph:   g,
		Name:    c.Name,
		Node:    node,
		Data:    data,
		Source:  c.SourceFile,
		Version: v,
		forks:   map[int]bool{v: false},
	}
}

// Versions returns the language levels the class is emitted for, ascending.
// The first is the class's own version.
func (c *Class) Versions() []int {
	vs := make([]int, 0, len(c.forks))
	for v := range c.forks {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	return vs
}

// MultiRelease reports whether level v is emitted under META-INF/versions.
func (c *Class) MultiRelease(v int) bool {
	return c.forks[v]
}

// Position returns the error position of a line in method.
func (c *Class) Position(method string, line int) Position {
	return Position{Class: c.Name, Method: method, Source: c.Source, Line: line}
}

// Method rewrites one method body. Handlers and local variable ranges are
// carried over by label identity.
func (c *Class) Method(m *classfile.Member, body *bytecode.Body) (*bytecode.Body, error) {
	static := m.Access&classfile.AccStatic != 0
	an, err := bytecode.Analyze(c.Name, static, m.Name, m.Desc, body, c.Graph)
	if err != nil {
		return nil, fmt.Errorf("rewrite: %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
	}
	r := &rewriter{
		cls:     c,
		method:  m.Name,
		targets: targets(body),
		labels:  make(map[any]*userLabel),
		out: &bytecode.Body{
			Handlers:   body.Handlers,
			Locals:     body.Locals,
			LocalTypes: body.LocalTypes,
		},
	}
	if err := r.run(body, an); err != nil {
		return nil, err
	}
	return r.out, nil
}

// Methods rewrites the bodies of cf's methods in place.
func (c *Class) Methods(cf *classfile.Class, bodies map[*classfile.Member]*bytecode.Body) error {
	for _, m := range cf.Methods {
		b, ok := bodies[m]
		if !ok {
			continue
		}
		out, err := c.Method(m, b)
		if err != nil {
			return err
		}
		bodies[m] = out
	}
	return nil
}

// Decode returns the symbolic body of every method of cf that has code.
func Decode(cf *classfile.Class) (map[*classfile.Member]*bytecode.Body, error) {
	bodies := make(map[*classfile.Member]*bytecode.Body)
	for _, m := range cf.Methods {
		if m.Code == nil {
			continue
		}
		b, err := bytecode.Decode(m.Code, cf.Pool)
		if err != nil {
			return nil, fmt.Errorf("rewrite: %s.%s%s: %w", cf.Name, m.Name, m.Desc, err)
		}
		bodies[m] = b
	}
	return bodies, nil
}

// targets returns the labels control can reach other than by falling
// through.
func targets(b *bytecode.Body) map[*bytecode.Label]bool {
	t := make(map[*bytecode.Label]bool)
	for _, in := range b.Insns {
		if in.Target != nil {
			t[in.Target] = true
		}
		if in.Default != nil {
			t[in.Default] = true
		}
		for _, l := range in.Targets {
			t[l] = true
		}
	}
	for _, h := range b.Handlers {
		t[h.Target] = true
	}
	return t
}

// machine is one pattern recognizer in the chain.
type machine interface {
	bytecode.Sink
	outward() *link
	end()
}

// link is the outward connection of a machine. A machine keeps its link
// after leaving the chain so that work it queued can still be replayed.
type link struct {
	next bytecode.Sink
}

func (l *link) outward() *link { return l }

type userLabel struct {
	label   *bytecode.Label
	defined bool
	line    int // line of the first reference while undefined
}

type rewriter struct {
	cls     *Class
	method  string
	line    int
	frame   *bytecode.Frame
	targets map[*bytecode.Label]bool
	chain   []machine // innermost last
	out     *bytecode.Body

	labels map[any]*userLabel
	order  []any

	err error // first failure; the replay stops once set
}

func (r *rewriter) run(body *bytecode.Body, an *bytecode.Analysis) error {
	if len(an.Frames) > 0 && an.Frames[0] != nil {
		r.frame = an.Frames[0].Clone()
	}
	for i, in := range body.Insns {
		switch in.Op {
		case bytecode.OpLabel:
			if r.frame == nil || r.targets[in.Label] {
				r.frame = nil
				if f := an.Frames[i]; f != nil {
					r.frame = f.Clone()
				}
			}
		case bytecode.OpLine:
			r.line = in.Line
		}
		r.dispatch(in)
		if r.err != nil {
			return r.err
		}
		if r.frame != nil && in.IsReal() {
			if err := r.frame.Execute(in, i); err != nil {
				log.Debugf("%s.%s: lost stack at %s: %s", r.cls.Name, r.method, in, err)
				r.frame = nil
			} else if in.Op.IsTerminal() {
				r.frame = nil
			}
		}
	}
	r.finish()
	return r.err
}

// dispatch handles the instructions that open a machine or are dropped
// outright, then hands in to the innermost machine.
func (r *rewriter) dispatch(in bytecode.Insn) {
	switch in.Op {
	case bytecode.OpGetstatic:
		if IsLevel(in) {
			r.push(&level{r: r})
		}
	case bytecode.OpInvokestatic:
		if in.Owner == UncheckedClass {
			switch {
			case in.Name == "check" && in.Desc == "()V":
				r.cls.Removals++
				return
			case in.Name == "cast" && in.Desc == castDesc:
				r.cls.Removals++
				r.push(&cast{r: r, from: r.top()})
				return
			}
		}
	case bytecode.OpNew:
		switch in.Owner {
		case labelClass, jumpClass:
			r.push(&labelMachine{r: r, jump: in.Owner == jumpClass})
		case UncheckedClass:
			r.push(&unchecked{r: r})
		case InvocationClass:
			r.push(newInvocation(r))
		}
	}
	r.head().Emit(in)
}

func (r *rewriter) head() bytecode.Sink {
	if len(r.chain) == 0 {
		return r.out
	}
	return r.chain[len(r.chain)-1]
}

func (r *rewriter) push(m machine) {
	m.outward().next = r.head()
	r.chain = append(r.chain, m)
}

// exit removes m from the chain, splicing its inner neighbour onto m's
// outward link.
func (r *rewriter) exit(m machine) {
	i := slices.Index(r.chain, m)
	if i < 0 {
		return
	}
	if i+1 < len(r.chain) {
		r.chain[i+1].outward().next = m.outward().next
	}
	r.chain = slices.Delete(r.chain, i, i+1)
}

func (r *rewriter) finish() {
	for _, id := range r.order {
		if l := r.labels[id]; !l.defined {
			r.line = l.line
			r.fail("Attempted jump to undefined label [%s]", labelID(id))
			return
		}
	}
	if n := len(r.chain); n > 0 {
		r.chain[n-1].end()
	}
}

// size returns the stack depth in slots, or -1 where the stack is unknown.
func (r *rewriter) size() int {
	if r.frame == nil {
		return -1
	}
	return len(r.frame.Stack)
}

// top returns the type on top of the stack.
func (r *rewriter) top() *types.Node {
	if r.frame == nil || len(r.frame.Stack) == 0 {
		return r.cls.Graph.Load(types.Object)
	}
	return r.cls.Graph.Load(r.frame.Stack[len(r.frame.Stack)-1].Type())
}

// fail records a malformed expression. Only the first failure of a method
// is kept.
func (r *rewriter) fail(format string, args ...any) {
	if r.err == nil {
		r.err = &MalformedExpressionError{
			Msg:      fmt.Sprintf(format, args...),
			Position: r.cls.Position(r.method, r.line),
		}
	}
}

func (r *rewriter) unsupported(format string, args ...any) {
	if r.err == nil {
		r.err = &UnsupportedForkError{
			Msg:      fmt.Sprintf(format, args...),
			Position: r.cls.Position(r.method, r.line),
		}
	}
}
