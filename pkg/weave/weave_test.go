package weave

import (
	"slices"
	"testing"

	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/rewrite"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
)

func anno(typ string, elems ...classfile.Element) *classfile.Annotation {
	return &classfile.Annotation{Type: typ, Elements: elems}
}

func elem(name string, v classfile.ElementValue) classfile.Element {
	return classfile.Element{Name: name, Value: v}
}

func str(s string) classfile.ElementValue   { return classfile.ElementValue{Tag: 's', String: s} }
func class(d string) classfile.ElementValue { return classfile.ElementValue{Tag: 'c', String: d} }

func params(ds ...string) classfile.ElementValue {
	v := classfile.ElementValue{Tag: '['}
	for _, d := range ds {
		v.Array = append(v.Array, class(d))
	}
	return v
}

func ops(b *bytecode.Body) []bytecode.Opcode {
	var out []bytecode.Opcode
	for _, in := range b.Insns {
		out = append(out, in.Op)
	}
	return out
}

// weave scans, defines and weaves c. bodies maps members to their code.
func weave(t *testing.T, c *classfile.Class, bodies map[*classfile.Member]*bytecode.Body) *rewrite.Class {
	t.Helper()
	g := types.NewGraph(nil)
	scan.Define(g, c)
	rc := rewrite.NewClass(g, c)
	if err := Apply(rc, c, bodies); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return rc
}

func newClass(name string) *classfile.Class {
	return &classfile.Class{
		Major:  classfile.Major(8),
		Pool:   classfile.NewPool(),
		Access: classfile.AccPublic | classfile.AccSuper,
		Name:   name,
		Super:  "java/lang/Object",
	}
}

func TestMethodBridge(t *testing.T) {
	c := newClass("a/W")
	m := &classfile.Member{
		Access:    classfile.AccPublic | classfile.AccStatic,
		Name:      "twice",
		Desc:      "(I)I",
		Invisible: []*classfile.Annotation{anno(scan.Bridge, elem("returns", class("Ljava/lang/Object;")))},
	}
	c.Methods = []*classfile.Member{m}
	bodies := map[*classfile.Member]*bytecode.Body{m: {Insns: []bytecode.Insn{
		bytecode.Var(bytecode.OpIload, 0), bytecode.Push(2), bytecode.Op(bytecode.OpImul), bytecode.Op(bytecode.OpIreturn),
	}}}
	rc := weave(t, c, bodies)

	if rc.Bridges != 1 {
		t.Errorf("Bridges = %d, want 1", rc.Bridges)
	}
	if len(m.Invisible) != 0 {
		t.Errorf("bridge annotation kept: %v", m.Invisible)
	}
	bm := c.Method("twice", "(I)Ljava/lang/Object;")
	if bm == nil {
		t.Fatalf("bridge method missing: %v", c.Methods)
	}
	if bm.Access&classfile.AccBridge == 0 || bm.Access&classfile.AccSynthetic == 0 {
		t.Errorf("bridge access = %#x", bm.Access)
	}
	want := []bytecode.Opcode{bytecode.OpIload, bytecode.OpInvokestatic, bytecode.OpInvokestatic, bytecode.OpAreturn}
	b := bodies[bm]
	if got := ops(b); !slices.Equal(got, want) {
		t.Fatalf("bridge body = %v, want %v", got, want)
	}
	if in := b.Insns[1]; in.Owner != "a/W" || in.Name != "twice" || in.Desc != "(I)I" {
		t.Errorf("forwarded call = %v", in)
	}
	if in := b.Insns[2]; in.Owner != "java/lang/Integer" || in.Name != "valueOf" {
		t.Errorf("boxing = %v", in)
	}
}

func TestMethodBridgeParams(t *testing.T) {
	c := newClass("a/W")
	m := &classfile.Member{
		Access: classfile.AccPublic,
		Name:   "put",
		Desc:   "(Ljava/lang/String;I)V",
		Invisible: []*classfile.Annotation{anno(scan.Bridge,
			elem("params", params("J")),
			elem("toIndex", classfile.ElementValue{Tag: 'I', Int: 1}),
		)},
	}
	c.Methods = []*classfile.Member{m}
	bodies := map[*classfile.Member]*bytecode.Body{m: {Insns: []bytecode.Insn{bytecode.Op(bytecode.OpReturn)}}}
	weave(t, c, bodies)

	bm := c.Method("put", "(J)V")
	if bm == nil {
		t.Fatalf("bridge method missing: %v", c.Methods)
	}
	// this, null for the skipped String, the long narrowed to int.
	want := []bytecode.Opcode{
		bytecode.OpAload, bytecode.OpAconstNull, bytecode.OpLload, bytecode.OpL2i,
		bytecode.OpInvokespecial, bytecode.OpReturn,
	}
	b := bodies[bm]
	if got := ops(b); !slices.Equal(got, want) {
		t.Fatalf("bridge body = %v, want %v", got, want)
	}
	if b.Insns[2].Var != 1 {
		t.Errorf("long loaded from slot %d, want 1", b.Insns[2].Var)
	}
}

func TestFieldBridges(t *testing.T) {
	c := newClass("a/F")
	value := c.Pool.AddInteger(7)
	f := &classfile.Member{
		Access:        classfile.AccPublic | classfile.AccStatic | classfile.AccFinal,
		Name:          "LIMIT",
		Desc:          "I",
		ConstantValue: value,
		Invisible: []*classfile.Annotation{
			anno(scan.Bridges, elem("value", classfile.ElementValue{Tag: '[', Array: []classfile.ElementValue{
				{Tag: '@', Nested: anno(scan.Bridge, elem("name", str("MAX")))},
				{Tag: '@', Nested: anno(scan.Bridge, elem("returns", class("J")))},
			}})),
		},
	}
	c.Fields = []*classfile.Member{f}
	bodies := map[*classfile.Member]*bytecode.Body{}
	rc := weave(t, c, bodies)

	if rc.Bridges != 2 {
		t.Errorf("Bridges = %d, want 2", rc.Bridges)
	}
	same := c.Field("MAX", "I")
	if same == nil || same.ConstantValue != value {
		t.Fatalf("MAX = %+v, want the constant copied", same)
	}
	if same.Access&classfile.AccTransient == 0 {
		t.Errorf("MAX access = %#x, want transient", same.Access)
	}
	wide := c.Field("LIMIT", "J")
	if wide == nil || wide.ConstantValue != 0 {
		t.Fatalf("LIMIT:J = %+v, want no constant", wide)
	}

	clinit := c.Method("<clinit>", "()V")
	if clinit == nil {
		t.Fatal("<clinit> not synthesized")
	}
	want := []bytecode.Opcode{bytecode.OpGetstatic, bytecode.OpI2l, bytecode.OpPutstatic, bytecode.OpReturn}
	if got := ops(bodies[clinit]); !slices.Equal(got, want) {
		t.Errorf("<clinit> = %v, want %v", got, want)
	}
}

func TestInstanceFieldBridge(t *testing.T) {
	c := newClass("a/F")
	f := &classfile.Member{
		Access:    classfile.AccPrivate | classfile.AccFinal,
		Name:      "size",
		Desc:      "I",
		Invisible: []*classfile.Annotation{anno(scan.Bridge, elem("name", str("length")))},
	}
	c.Fields = []*classfile.Member{f}

	// <init>()V delegates to <init>(I)V, which assigns the field.
	delegating := &classfile.Member{Access: classfile.AccPublic, Name: "<init>", Desc: "()V"}
	assigning := &classfile.Member{Access: classfile.AccPublic, Name: "<init>", Desc: "(I)V"}
	c.Methods = []*classfile.Member{delegating, assigning}
	bodies := map[*classfile.Member]*bytecode.Body{
		delegating: {Insns: []bytecode.Insn{
			bytecode.Var(bytecode.OpAload, 0),
			bytecode.Push(0),
			bytecode.Method(bytecode.OpInvokespecial, "a/F", "<init>", "(I)V", false),
			bytecode.Op(bytecode.OpReturn),
		}},
		assigning: {Insns: []bytecode.Insn{
			bytecode.Var(bytecode.OpAload, 0),
			bytecode.Method(bytecode.OpInvokespecial, "java/lang/Object", "<init>", "()V", false),
			bytecode.Var(bytecode.OpAload, 0),
			bytecode.Var(bytecode.OpIload, 1),
			bytecode.Field(bytecode.OpPutfield, "a/F", "size", "I"),
			bytecode.Op(bytecode.OpReturn),
		}},
	}
	weave(t, c, bodies)

	if got := len(bodies[delegating].Insns); got != 4 {
		t.Errorf("delegating constructor has %d instructions, want 4", got)
	}
	want := []bytecode.Opcode{
		bytecode.OpAload, bytecode.OpInvokespecial, bytecode.OpAload, bytecode.OpIload, bytecode.OpPutfield,
		bytecode.OpAload, bytecode.OpDup, bytecode.OpGetfield, bytecode.OpPutfield,
		bytecode.OpReturn,
	}
	b := bodies[assigning]
	if got := ops(b); !slices.Equal(got, want) {
		t.Fatalf("assigning constructor = %v, want %v", got, want)
	}
	if in := b.Insns[8]; in.Name != "length" || in.Desc != "I" {
		t.Errorf("bridge store = %v", in)
	}
}

func TestAdopt(t *testing.T) {
	c := newClass("a/Child")
	c.Invisible = []*classfile.Annotation{anno(scan.Adopt, elem("parent", class("Lb/Base;")))}
	ctor := &classfile.Member{Access: classfile.AccPublic, Name: "<init>", Desc: "()V"}
	c.Methods = []*classfile.Member{ctor}
	bodies := map[*classfile.Member]*bytecode.Body{ctor: {Insns: []bytecode.Insn{
		bytecode.Var(bytecode.OpAload, 0),
		bytecode.TypeInsn(bytecode.OpNew, "x/Arg"),
		bytecode.Op(bytecode.OpDup),
		bytecode.Method(bytecode.OpInvokespecial, "x/Arg", "<init>", "()V", false),
		bytecode.Method(bytecode.OpInvokespecial, "java/lang/Object", "<init>", "(Ljava/lang/Object;)V", false),
		bytecode.Op(bytecode.OpReturn),
	}}}
	rc := weave(t, c, bodies)

	if c.Super != "b/Base" {
		t.Errorf("Super = %s, want b/Base", c.Super)
	}
	if len(c.Invisible) != 0 {
		t.Errorf("adopt annotation kept: %v", c.Invisible)
	}
	if rc.Adjustments != 1 {
		t.Errorf("Adjustments = %d, want 1", rc.Adjustments)
	}
	b := bodies[ctor]
	if owner := b.Insns[3].Owner; owner != "x/Arg" {
		t.Errorf("argument constructor owner = %s, want x/Arg", owner)
	}
	if owner := b.Insns[4].Owner; owner != "b/Base" {
		t.Errorf("super constructor owner = %s, want b/Base", owner)
	}
}

func TestSyntheticOverride(t *testing.T) {
	c := newClass("a/S")
	m := &classfile.Member{
		Access:    classfile.AccPublic,
		Name:      "hidden",
		Desc:      "()V",
		Invisible: []*classfile.Annotation{anno(scan.Synthetic)},
	}
	c.Methods = []*classfile.Member{m}
	c.Invisible = []*classfile.Annotation{anno(scan.Synthetic)}
	rc := weave(t, c, map[*classfile.Member]*bytecode.Body{})

	if m.Access&classfile.AccSynthetic == 0 {
		t.Errorf("method access = %#x, want synthetic", m.Access)
	}
	if c.Access&classfile.AccSynthetic == 0 {
		t.Errorf("class access = %#x, want synthetic", c.Access)
	}
	if rc.Adjustments != 2 {
		t.Errorf("Adjustments = %d, want 2", rc.Adjustments)
	}
}
