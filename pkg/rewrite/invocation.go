package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/convert"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
)

// Invocation states.
const (
	stateUnopened = iota
	stateNew
	stateDup
	stateOwner
	stateNamed
	stateBuilding
	stateCast
	stateFlushed
)

// nullConstant stands for an aconst_null captured as the owner or type
// constant. Using it is an error.
type nullConstant struct{}

// invocation resolves one new Invocation(...) expression. Everything from
// the opening NEW to the terminal call is buffered in ops and replayed, with
// the resolved instruction spliced in, once the cast that follows is known.
type invocation struct {
	link
	r     *rewriter
	state int
	ops   []func()

	ldc      any // captured constant, nil when none
	ldi      int // index in ops of the captured constant
	instCast int // index in ops of the instance cast, -1 when none
	zero     int // stack depth of the first constructor argument, then past the Invocation
	virtual  int // index in ops after the instance load, 0 when static

	primitive types.Type // set right after a box valueOf, Void after aconst_null
	boxed     int        // index in ops of that valueOf
	name      string
	named     bool
	owner     *types.Node
	returns   *types.Node
	casted    *types.Node
	params    []types.Type
	defaults  func() *types.Node
}

func newInvocation(r *rewriter) *invocation {
	m := &invocation{r: r, instCast: -1, casted: r.cls.Graph.Load(types.Object)}
	m.defaults = func() *types.Node { return m.casted }
	return m
}

func (m *invocation) Emit(in bytecode.Insn) {
	r, g := m.r, m.r.cls.Graph
	switch in.Op {
	case bytecode.OpLabel:
		if m.state == stateCast {
			m.flush()
			m.next.Emit(in)
			return
		}
		m.ops = append(m.ops, m.replay(in))
		return
	case bytecode.OpLine:
		m.ops = append(m.ops, m.replay(in))
		return
	case bytecode.OpNew:
		if m.state == stateUnopened {
			m.state = stateNew
			m.zero = r.size() + 1
			return
		}
	case bytecode.OpCheckcast:
		if m.state == stateCast {
			m.casted = g.LoadClass(in.Owner)
			return
		}
	case bytecode.OpDup:
		if m.state == stateNew {
			m.state = stateDup
			m.zero++
			return
		}
	case bytecode.OpAconstNull:
		if m.state == stateOwner {
			r.fail("Illegal null invocation constant")
			return
		}
		if m.state <= stateBuilding {
			if m.ldc == nil && r.size() == m.zero {
				m.ldi = len(m.ops)
				m.ldc = nullConstant{}
				m.queue(in)
			} else {
				m.queue(in)
				m.primitive = types.Void
			}
			return
		}
	case bytecode.OpPop, bytecode.OpPop2:
		if m.state == stateCast {
			m.casted = g.Load(types.Void)
			m.queueOp(func() {})
			return
		}
	case bytecode.OpGetstatic:
		if m.state <= stateBuilding && m.ldc == nil && r.size() == m.zero && in.Name == "TYPE" {
			if s := types.PrimitiveSort(types.ObjectType(in.Owner)); s < types.SortArray {
				m.ldi = len(m.ops)
				m.ldc = types.Primitive(s)
			}
		}
	case bytecode.OpLdc:
		if m.state <= stateBuilding && m.ldc == nil && r.size() == m.zero {
			m.ldi = len(m.ops)
			m.ldc = in.Const
		} else if m.state == stateOwner {
			m.state = stateNamed
			m.name, m.named = m.text(in.Const), true
			return
		}
	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		if m.method(in) {
			return
		}
	}
	m.queue(in)
}

func (m *invocation) replay(in bytecode.Insn) func() {
	return func() { m.next.Emit(in) }
}

func (m *invocation) queue(in bytecode.Insn) {
	m.queueOp(m.replay(in))
}

// queueOp buffers op while the expression is open. In the cast state any
// queued work completes the expression first.
func (m *invocation) queueOp(op func()) {
	switch {
	case m.state <= stateBuilding:
		m.primitive = ""
		m.ops = append(m.ops, op)
	case m.state == stateCast:
		m.flush()
		op()
	default:
		m.r.fail("Illegal state [0x0%x]", m.state)
	}
}

func (m *invocation) insert(i int, op func()) {
	m.ops = slices.Insert(m.ops, i, op)
}

func (m *invocation) remove(i int) {
	m.ops = slices.Delete(m.ops, i, i+1)
}

// flush replays the expression. The result on top of the input stack is
// hidden while the buffered instructions reach the outer machines, which
// then see the stack as it was before the expression.
func (m *invocation) flush() {
	m.state = stateFlushed
	f := m.r.frame
	var hidden *bytecode.Value
	if f != nil && len(f.Stack) > 0 {
		v := f.Stack[len(f.Stack)-1]
		hidden = &v
		f.Stack = f.Stack[:len(f.Stack)-1]
	}
	if m.returns == nil {
		m.returns = m.defaults()
	}
	for _, op := range m.ops {
		op()
	}
	convert.Emit(m.returns, m.casted, m.next)
	if hidden != nil {
		v := *hidden
		if v.Kind == bytecode.KindRef && v.Name == "java/lang/Object" {
			v = bytecode.Ref(types.Box(m.returns.Type).Internal())
		}
		f.Stack = append(f.Stack, v)
	}
	m.r.exit(m)
	m.r.cls.Invocations++
}

// text is the string form of a captured constant.
func (m *invocation) text(c any) string {
	switch c := c.(type) {
	case string:
		return c
	case types.Type:
		return string(c)
	case nullConstant:
		m.r.fail("Illegal null invocation constant")
	}
	return fmt.Sprint(c)
}

// consume removes the captured constant from the output and resolves it as
// a type. After a failure it stands in java/lang/Object.
func (m *invocation) consume() *types.Node {
	g := m.r.cls.Graph
	c := m.ldc
	if c == nil {
		m.r.fail("Illegal dynamic invocation constant")
		return g.Load(types.Object)
	}
	m.remove(m.ldi)
	m.ldc = nil
	if t, ok := c.(types.Type); ok {
		return g.Load(t)
	}
	name := strings.ReplaceAll(m.text(c), ".", "/")
	if name == "" {
		m.r.fail("Illegal empty invocation constant")
		return g.Load(types.Object)
	}
	return g.LoadClass(name)
}

// stack returns the type at slot zero+i, or the primitive of sort s.
func (m *invocation) stack(s types.Sort, i int) *types.Node {
	g := m.r.cls.Graph
	if s < types.SortArray {
		return g.Load(types.Primitive(s))
	}
	f, j := m.r.frame, m.zero+i
	if f == nil || j < 0 || j >= len(f.Stack) {
		return g.Load(types.Object)
	}
	return g.Load(f.Stack[j].Type())
}

// special reports whether a call on the instance must use INVOKESPECIAL.
func (m *invocation) special(desc string) bool {
	owner, cls := m.owner, m.r.cls.Node
	if owner.IsArray() {
		return false
	}
	if !owner.IsInterface() {
		if owner.Type == cls.Type && m.r.cls.Data.Private(scan.MethodKey(m.name, desc)) {
			return true
		}
		return !cls.IsInterface() && cls.Super != nil && owner.Type == cls.Super.Type
	}
	for _, i := range cls.Interfaces {
		if owner.Type == i.Type {
			return true
		}
	}
	return false
}

func (m *invocation) void() bool {
	return m.casted.Type.Sort() == types.SortVoid
}

func (m *invocation) statement() {
	if m.void() {
		m.r.fail("Invocation does not result in a statement")
	}
}

// method handles a call instruction. It reports whether the call was part
// of the expression.
func (m *invocation) method(in bytecode.Insn) bool {
	r, g := m.r, m.r.cls.Graph
	switch {
	case m.state <= stateDup:
		n := 1
		if len(in.Desc) >= 22 {
			n = 2
		}
		if r.size() != n+m.zero || !strings.HasSuffix(in.Desc, ")V") {
			return false
		}
		if in.Desc == "(Ljava/lang/Object;)V" {
			m.owner = m.stack(types.SortObject, 0)
			m.virtual = len(m.ops)
			m.ldc = nil
			m.ldi = 0
		} else {
			if m.ldc == nil {
				r.fail("Attempted invocation on unknown type")
				return true
			}
			if m.owner = m.consume(); m.owner.IsPrimitive() {
				r.fail("Attempted invocation on primitive type")
			}
			if n == 2 {
				typ, owner := m.stack(types.SortObject, 1), m.owner
				m.ldi = len(m.ops)
				m.instCast = m.ldi
				m.virtual = m.ldi + 1
				m.queueOp(func() { convert.Emit(typ, owner, m.next) })
			}
		}
		m.zero--
		m.state = stateOwner
		return true

	case m.state <= stateNamed:
		m.selector(in.Name)
		return true

	case m.state == stateBuilding:
		params, _, err := types.ParseMethod(in.Desc)
		if err != nil {
			return false
		}
		fits := r.size() == types.Slots(params)+m.zero
		switch {
		case fits && in.Owner == executorClass:
			m.execute(in.Name, params)
			return true
		case fits && in.Owner == accessorClass:
			m.access(in.Name, params)
			return true
		case in.Name == "valueOf" && len(params) == 1 && params[0].IsPrimitive() &&
			types.PrimitiveSort(types.ObjectType(in.Owner)) < types.SortArray:
			m.boxed = len(m.ops)
			m.queue(in)
			m.primitive = params[0]
			return true
		}

	case m.state == stateCast:
		ret := types.ReturnType(in.Desc)
		if strings.HasSuffix(in.Name, "Value") && ret.IsPrimitive() &&
			types.PrimitiveSort(types.ObjectType(in.Owner)) < types.SortArray {
			m.casted = g.Load(ret)
			return true
		}
	}
	return false
}

func (m *invocation) selector(name string) {
	r, g := m.r, m.r.cls.Graph
	if name == "ofInstanceOf" {
		m.instanceOf()
		return
	}
	if m.ldc != nil {
		if !m.named {
			m.remove(m.ldi)
			m.name, m.named = m.text(m.ldc), true
			m.ldc = nil
		} else {
			m.returns = m.consume()
		}
	}
	switch name {
	case "ofMethod":
		if m.name == "" {
			r.fail("No method name provided")
		}
	case "ofField":
		if m.name == "" {
			r.fail("No field name provided")
		}
		if m.returns != nil && m.returns.Type.Sort() == types.SortVoid {
			r.fail("Attempted access of void field")
		}
	case "ofConstructor":
		if m.virtual != 0 {
			r.fail("Attempted reinvocation of constructor")
		}
		if m.returns = m.owner; !m.owner.IsArray() {
			m.queueOp(func() {
				m.next.Emit(bytecode.TypeInsn(bytecode.OpNew, m.returns.Internal()))
				if m.void() {
					m.returns = m.casted
				} else {
					m.next.Emit(bytecode.Op(bytecode.OpDup))
				}
			})
		}
		m.name, m.named = "", false
	case "ofClassLiteral":
		if m.virtual != 0 {
			m.queue(bytecode.Method(bytecode.OpInvokevirtual, "java/lang/Object", "getClass", "()Ljava/lang/Class;", false))
		} else {
			owner := m.owner
			m.queueOp(func() {
				m.statement()
				m.next.Emit(bytecode.Ldc(owner.Type))
			})
		}
		m.casted = g.Load(types.Class)
		m.returns = m.casted
		m.state = stateCast
		return
	default:
		r.fail("Unknown invocation type [.%s()]", name)
	}
	m.state = stateBuilding
}

// instanceOf handles ofInstanceOf(Class) and the older ofInstanceOf(),
// which tests against the owner itself.
func (m *invocation) instanceOf() {
	g := m.r.cls.Graph
	var tested *types.Node
	if m.ldc != nil {
		tested = m.consume()
	}
	switch {
	case tested == nil:
		if m.virtual == 0 {
			m.r.fail("Attempted instanceof without instance")
		}
		if m.instCast >= 0 {
			m.remove(m.instCast)
		}
		owner := m.owner
		m.queueOp(func() { m.next.Emit(bytecode.TypeInsn(bytecode.OpInstanceof, owner.Internal())) })
	case m.virtual == 0:
		op := bytecode.OpIconst0
		if m.owner.Implements(tested) {
			op = bytecode.OpIconst1
		}
		m.queue(bytecode.Op(op))
	default:
		if m.instCast >= 0 {
			m.remove(m.instCast)
		}
		m.queue(bytecode.TypeInsn(bytecode.OpInstanceof, tested.Internal()))
	}
	m.casted = g.Load(types.Boolean)
	m.returns = m.casted
	m.state = stateCast
}

// execute handles the Executor calls: with, check and invoke.
func (m *invocation) execute(name string, params []types.Type) {
	r, g := m.r, m.r.cls.Graph
	switch name {
	case "with":
		switch {
		case len(params) == 1:
			m.ldc = nil
			m.params = append(m.params, m.stack(params[0].Sort(), 0).Type)
		case m.primitive == types.Void:
			m.params = append(m.params, m.consume().Type)
		default:
			// Drop the boxing call before the type constant, which sits
			// lower in ops. Line markers queued after the call stay.
			var arg *types.Node
			if m.primitive != "" {
				m.remove(m.boxed)
				arg = g.Load(m.primitive)
				m.primitive = ""
			} else {
				arg = m.stack(types.SortObject, 1)
			}
			param := m.consume()
			if param.Type == types.Void {
				r.fail("Attempted use of void argument")
			}
			m.params = append(m.params, param.Type)
			m.queueOp(func() { convert.Emit(arg, param, m.next) })
		}
		if !m.named && m.owner.IsArray() {
			if m.owner.Depth < len(m.params) {
				r.fail("Array depth exceeds type declaration")
			}
			if last := m.params[len(m.params)-1]; last.Sort() != types.SortInt {
				m.queueOp(func() { convert.EmitTypes(last, types.Int, m.next) })
			}
		}
	case "check":
		if m.ldc != nil {
			m.remove(m.ldi)
			m.ldc = nil
		}
	case "invoke":
		switch {
		case m.named:
			m.queueOp(func() {
				desc := types.MethodDesc(m.returns.Type, m.params...)
				op := bytecode.OpInvokestatic
				if m.virtual != 0 {
					switch {
					case m.special(desc):
						op = bytecode.OpInvokespecial
					case m.owner.IsInterface():
						op = bytecode.OpInvokeinterface
					default:
						op = bytecode.OpInvokevirtual
					}
				}
				m.next.Emit(bytecode.Method(op, m.owner.Internal(), m.name, desc, m.owner.IsInterface()))
			})
		case !m.owner.IsArray():
			desc := types.MethodDesc(types.Void, m.params...)
			m.queue(bytecode.Method(bytecode.OpInvokespecial, m.owner.Internal(), "<init>", desc, false))
		default:
			m.queueOp(m.newArray)
		}
		m.state = stateCast
	default:
		r.fail("Unknown invoke operation [.%s()]", name)
	}
}

func (m *invocation) newArray() {
	m.statement()
	switch depth := len(m.params); depth {
	case 0:
		m.r.fail("Attempted array creation with undefined length")
	case 1:
		component := m.owner.Type.Component()
		if t, ok := newarrayTypes[component.Sort()]; ok {
			m.next.Emit(bytecode.Insn{Op: bytecode.OpNewarray, Int: t})
		} else {
			m.next.Emit(bytecode.TypeInsn(bytecode.OpAnewarray, component.Internal()))
		}
	default:
		m.next.Emit(bytecode.Insn{Op: bytecode.OpMultianewarray, Owner: m.owner.Internal(), Int: int32(depth)})
	}
}

var newarrayTypes = map[types.Sort]int32{
	types.SortBoolean: bytecode.TBoolean,
	types.SortChar:    bytecode.TChar,
	types.SortByte:    bytecode.TByte,
	types.SortShort:   bytecode.TShort,
	types.SortInt:     bytecode.TInt,
	types.SortFloat:   bytecode.TFloat,
	types.SortLong:    bytecode.TLong,
	types.SortDouble:  bytecode.TDouble,
}

// access handles the Accessor calls: get, set, setAndGet and getAndSet.
func (m *invocation) access(name string, params []types.Type) {
	r := m.r
	switch len(params) {
	case 0:
		if name != "get" {
			r.fail("Unknown read operation [.%s()]", name)
		}
		m.queueOp(func() {
			m.statement()
			if !m.owner.IsArray() || m.virtual == 0 || m.name != "length" {
				m.next.Emit(bytecode.Field(m.fieldOp(bytecode.OpGetstatic, bytecode.OpGetfield), m.owner.Internal(), m.name, string(m.returns.Type)))
			} else {
				m.next.Emit(bytecode.Op(bytecode.OpArraylength))
				m.returns = r.cls.Graph.Load(types.Int)
			}
		})
	case 1:
		arg := m.stack(params[0].Sort(), 0)
		m.defaults = func() *types.Node {
			if m.void() {
				return arg
			}
			return m.casted
		}
		index := len(m.ops)
		m.queueOp(func() { convert.Emit(arg, m.returns, m.next) })
		m.queueOp(func() {
			m.next.Emit(bytecode.Field(m.fieldOp(bytecode.OpPutstatic, bytecode.OpPutfield), m.owner.Internal(), m.name, string(m.returns.Type)))
		})
		switch name {
		case "getAndSet":
			m.insert(m.virtual, m.readOld)
		case "set":
			m.casted = arg
			m.defaults = func() *types.Node { return arg }
			m.ops = append(m.ops, func() { m.returns = arg })
			m.insert(index, func() { m.dup(arg) })
		case "setAndGet":
			m.insert(index+1, func() { m.dup(m.returns) })
		default:
			r.fail("Unknown write operation [.%s()]", name)
		}
	default:
		r.fail("Too many arguments for field access")
	}
	m.ldc = nil
	m.state = stateCast
}

func (m *invocation) fieldOp(static, instance bytecode.Opcode) bytecode.Opcode {
	if m.virtual == 0 {
		return static
	}
	return instance
}

// readOld loads the previous field value under the instance for getAndSet.
func (m *invocation) readOld() {
	size := m.casted.Type.Size()
	if size == 0 {
		m.casted = m.returns
		return
	}
	owner, desc := m.owner.Internal(), string(m.returns.Type)
	if m.virtual == 0 {
		m.next.Emit(bytecode.Field(bytecode.OpGetstatic, owner, m.name, desc))
		return
	}
	m.next.Emit(bytecode.Op(bytecode.OpDup))
	m.next.Emit(bytecode.Field(bytecode.OpGetfield, owner, m.name, desc))
	if m.returns.Type.Size() != 1 {
		if size != 1 {
			m.next.Emit(bytecode.Op(bytecode.OpDup2X1))
			m.next.Emit(bytecode.Op(bytecode.OpPop2))
			return
		}
		convert.Emit(m.returns, m.casted, m.next)
		m.casted = m.returns
	}
	m.next.Emit(bytecode.Op(bytecode.OpSwap))
}

// dup keeps a copy of the stored value of type t as the result.
func (m *invocation) dup(t *types.Node) {
	if m.void() {
		m.casted = t
		return
	}
	wide := t.Type.Size() == 2
	switch {
	case m.virtual == 0 && wide:
		m.next.Emit(bytecode.Op(bytecode.OpDup2))
	case m.virtual == 0:
		m.next.Emit(bytecode.Op(bytecode.OpDup))
	case wide:
		m.next.Emit(bytecode.Op(bytecode.OpDup2X1))
	default:
		m.next.Emit(bytecode.Op(bytecode.OpDupX1))
	}
}

func (m *invocation) end() {
	m.r.fail("Method ended despite incomplete invocation [0x0%x]", m.state)
}
