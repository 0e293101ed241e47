package types

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.types")

const accInterface = 0x0200

// UnresolvedTypeError reports a type that no source could supply. The graph
// still returns a stub node for it.
type UnresolvedTypeError struct {
	Name string
	Err  error
}

func (e *UnresolvedTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unresolved type %s: %v", e.Name, e.Err)
	}
	return "unresolved type " + e.Name
}

func (e *UnresolvedTypeError) Unwrap() error {
	return e.Err
}

// Record is the hierarchy information of one class.
type Record struct {
	Name       string // internal name
	Access     uint16
	Super      string // empty for java/lang/Object
	Interfaces []string
	Data       any
}

// Source supplies records for classes the graph has not seen. Lookup returns
// (nil, nil) when the class is simply not there.
type Source interface {
	Lookup(name string) (*Record, error)
}

// Node is a type in the graph.
type Node struct {
	Type       Type
	Access     uint16
	Super      *Node
	Interfaces []*Node
	Elem       *Node // arrays: the fully stripped element
	Depth      int   // arrays: number of dimensions
	Data       any

	stub bool
}

func (n *Node) IsArray() bool {
	return n.Depth > 0
}

func (n *Node) IsPrimitive() bool {
	return n.Type.IsPrimitive()
}

func (n *Node) IsInterface() bool {
	return n.Access&accInterface != 0
}

// IsStub reports whether the node stands in for an unresolved class.
func (n *Node) IsStub() bool {
	return n.stub
}

// Internal returns the internal name (or descriptor, for arrays).
func (n *Node) Internal() string {
	return n.Type.Internal()
}

func (n *Node) String() string {
	return string(n.Type)
}

// Implements reports whether a value of n is assignable to other: n is
// other, extends it, or implements it. Arrays are covariant over reference
// elements.
func (n *Node) Implements(other *Node) bool {
	if other == nil {
		return false
	}
	return n.implements(other, make(map[*Node]bool))
}

func (n *Node) implements(other *Node, visited map[*Node]bool) bool {
	if n == other || n.Type == other.Type {
		return true
	}
	visited[n] = true
	if n.IsArray() && other.IsArray() {
		switch {
		case n.Depth == other.Depth:
			return !n.Elem.IsPrimitive() && !other.Elem.IsPrimitive() && n.Elem.implements(other.Elem, visited)
		case n.Depth > other.Depth:
			switch other.Elem.Type {
			case Object, Cloneable, Serializable:
				return true
			}
		}
		return false
	}
	if n.Super != nil && !visited[n.Super] && n.Super.implements(other, visited) {
		return true
	}
	for _, i := range n.Interfaces {
		if !visited[i] && i.implements(other, visited) {
			return true
		}
	}
	return false
}

// Extends reports whether other is n or on n's superclass chain.
func (n *Node) Extends(other *Node) bool {
	for s := n; s != nil; s = s.Super {
		if s == other || s.Type == other.Type {
			return true
		}
	}
	return false
}

// Graph is the class hierarchy known to one build. Nodes are created on
// first use and never evicted.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[Type]*Node
	source Source
}

// NewGraph returns a graph seeded with the core JDK types. source may be nil.
func NewGraph(source Source) *Graph {
	g := &Graph{
		nodes:  make(map[Type]*Node),
		source: source,
	}
	for _, r := range builtins {
		g.Define(r)
	}
	return g
}

// Define inserts a class. A node that already exists is left alone unless
// it is a stub, which is completed in place. Define belongs to the scan
// phase: it must not race with queries on the same nodes.
func (g *Graph) Define(r Record) *Node {
	t := ObjectType(r.Name)
	super := g.superOf(r)
	ifaces := make([]*Node, 0, len(r.Interfaces))
	for _, i := range r.Interfaces {
		ifaces = append(ifaces, g.Load(ObjectType(i)))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[t]
	if ok && !n.stub {
		if r.Data != nil && n.Data == nil {
			n.Data = r.Data
		}
		return n
	}
	if !ok {
		n = &Node{Type: t}
		g.nodes[t] = n
	}
	n.stub = false
	n.Access = r.Access
	n.Super = super
	n.Interfaces = ifaces
	n.Data = r.Data
	return n
}

func (g *Graph) superOf(r Record) *Node {
	switch {
	case r.Super != "":
		return g.Load(ObjectType(r.Super))
	case r.Name != "java/lang/Object":
		return g.Load(Object)
	}
	return nil
}

// Lookup returns the node of t if the graph already holds it.
func (g *Graph) Lookup(t Type) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[t]
	return n, ok
}

// Resolve returns the node of t, consulting the source on a miss. When t
// cannot be found, Resolve returns a stub that extends java/lang/Object
// together with an *UnresolvedTypeError.
func (g *Graph) Resolve(t Type) (*Node, error) {
	return g.resolve(t, nil)
}

func (g *Graph) resolve(t Type, visiting map[Type]bool) (*Node, error) {
	if n, ok := g.Lookup(t); ok {
		return n, nil
	}

	switch t.Sort() {
	case SortArray:
		elem, err := g.resolve(t.Element(), visiting)
		n := &Node{
			Type:       t,
			Access:     accPublic | accFinal | accAbstract,
			Super:      g.Load(Object),
			Interfaces: []*Node{g.Load(Cloneable), g.Load(Serializable)},
			Elem:       elem,
			Depth:      t.Dims(),
		}
		return g.insert(n), err
	case SortObject:
	default:
		return g.insert(&Node{Type: t, Access: accPublic | accFinal}), nil
	}

	name := t.Internal()
	var rec *Record
	var err error
	if visiting[t] {
		err = fmt.Errorf("circular hierarchy")
	} else if g.source != nil {
		rec, err = g.source.Lookup(name)
	}
	if rec == nil {
		return g.insert(g.stub(t)), &UnresolvedTypeError{Name: name, Err: err}
	}

	if visiting == nil {
		visiting = make(map[Type]bool)
	}
	visiting[t] = true
	n := &Node{Type: t, Access: rec.Access, Data: rec.Data}
	if rec.Super != "" {
		n.Super, _ = g.resolve(ObjectType(rec.Super), visiting)
	} else if name != "java/lang/Object" {
		n.Super, _ = g.resolve(Object, visiting)
	}
	for _, i := range rec.Interfaces {
		in, _ := g.resolve(ObjectType(i), visiting)
		n.Interfaces = append(n.Interfaces, in)
	}
	delete(visiting, t)
	return g.insert(n), nil
}

func (g *Graph) stub(t Type) *Node {
	n := &Node{Type: t, stub: true}
	if t != Object {
		n.Super = g.Load(Object)
	}
	return n
}

// insert stores n unless another goroutine got there first.
func (g *Graph) insert(n *Node) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.nodes[n.Type]; ok {
		return prev
	}
	g.nodes[n.Type] = n
	return n
}

// Load is Resolve without the error: an unresolved type is logged and its
// stub returned.
func (g *Graph) Load(t Type) *Node {
	n, err := g.Resolve(t)
	if err != nil {
		log.Debugf("%s", err)
	}
	return n
}

// LoadClass loads a type by internal name.
func (g *Graph) LoadClass(internal string) *Node {
	return g.Load(ObjectType(internal))
}

// CommonSuper returns the internal name of the most specific class both a
// and b are assignable to. Interfaces meet at java/lang/Object.
func (g *Graph) CommonSuper(a, b string) string {
	if a == b {
		return a
	}
	na, nb := g.LoadClass(a), g.LoadClass(b)
	if nb.Implements(na) {
		return a
	}
	if na.Implements(nb) {
		return b
	}
	if na.IsArray() || nb.IsArray() {
		if na.Depth == nb.Depth && !na.Elem.IsPrimitive() && !nb.Elem.IsPrimitive() {
			elem := g.CommonSuper(na.Elem.Internal(), nb.Elem.Internal())
			return string(ArrayOf(ObjectType(elem), na.Depth))
		}
		return "java/lang/Object"
	}
	if na.IsInterface() || nb.IsInterface() {
		return "java/lang/Object"
	}
	for s := na.Super; s != nil; s = s.Super {
		if nb.Implements(s) {
			return s.Internal()
		}
	}
	return "java/lang/Object"
}
