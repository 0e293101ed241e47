// Package weave applies the member scan of a class to the class itself:
// adopted supertypes, access overrides, and the synthesized bridge fields
// and methods.
package weave

import (
	"fmt"

	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/convert"
	"github.com/chazu/bridge/pkg/rewrite"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.weave")

// fieldInit copies an original field into one of its bridges.
type fieldInit struct {
	orig *classfile.Member
	spec *scan.BridgeSpec
}

type weaver struct {
	rc     *rewrite.Class
	c      *classfile.Class
	data   *scan.ClassData
	bodies map[*classfile.Member]*bytecode.Body

	adopt     string // superclass constructors are redirected here
	instances []fieldInit
	statics   []fieldInit
}

// Apply weaves rc's scan data into c. bodies holds the method bodies by
// member; the bodies of synthesized members are added to it. Bridges and
// adjustments are counted on rc.
func Apply(rc *rewrite.Class, c *classfile.Class, bodies map[*classfile.Member]*bytecode.Body) error {
	w := &weaver{rc: rc, c: c, data: rc.Data, bodies: bodies}
	w.header()
	w.fields()
	if err := w.methods(); err != nil {
		return err
	}
	w.initializers()
	return nil
}

func (w *weaver) header() {
	c, d := w.c, w.data
	if d.Adopted {
		c.Super = d.Super
		c.Interfaces = d.Interfaces
		c.Signature = d.Signature
		w.adopt = d.Super
	}
	c.Access = d.Access
	c.Invisible = w.strip(c.Invisible, scan.Adopt, scan.Synthetic)
}

// strip removes the marker annotations. Each removed annotation of a type
// in counted is an adjustment.
func (w *weaver) strip(annos []*classfile.Annotation, counted ...string) []*classfile.Annotation {
	for _, a := range annos {
		for _, t := range counted {
			if a.Type == t {
				w.rc.Adjustments++
			}
		}
	}
	return classfile.StripAnnotations(annos, scan.Adopt, scan.Bridge, scan.Bridges, scan.Synthetic)
}

func (w *weaver) access(key string, acc uint16) uint16 {
	if a, ok := w.data.Members[key]; ok {
		return a
	}
	return acc
}

func (w *weaver) fields() {
	for _, f := range w.c.Fields[:len(w.c.Fields):len(w.c.Fields)] {
		key := scan.FieldKey(f.Name, f.Desc)
		f.Access = w.access(key, f.Access)
		f.Invisible = w.strip(f.Invisible, scan.Synthetic)

		constant := f.Access&classfile.AccFinal != 0
		for _, s := range w.data.Bridges[key] {
			safe := constant && types.Type(f.Desc) == s.Returns
			bf := &classfile.Member{
				Access:    s.Access,
				Name:      s.Name,
				Desc:      s.Desc,
				Signature: s.Signature,
				Visible:   s.Annotations,
			}
			if safe {
				bf.ConstantValue = f.ConstantValue
			}
			if !safe || f.ConstantValue == 0 {
				fi := fieldInit{orig: f, spec: s}
				if s.Access&classfile.AccStatic != 0 {
					w.statics = append(w.statics, fi)
				} else {
					w.instances = append(w.instances, fi)
				}
			}
			w.c.Fields = append(w.c.Fields, bf)
			w.rc.Bridges++
			log.Debugf("%s: field %s %s bridges %s", w.c.Name, s.Name, s.Desc, f.Name)
		}
	}
}

func (w *weaver) methods() error {
	for _, m := range w.c.Methods[:len(w.c.Methods):len(w.c.Methods)] {
		key := scan.MethodKey(m.Name, m.Desc)
		m.Access = w.access(key, m.Access)
		m.Invisible = w.strip(m.Invisible, scan.Synthetic)

		if b, ok := w.bodies[m]; ok {
			switch m.Name {
			case "<init>":
				w.bodies[m] = w.amend(b, w.instances, true)
			case "<clinit>":
				w.bodies[m] = w.amend(b, w.statics, false)
			}
		}
		for _, s := range w.data.Bridges[key] {
			if err := w.bridge(m, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// amend rewrites an initializer: constructor calls on the superclass follow
// adoption, and bridge fields are set before every RETURN. A constructor
// that delegates to this(...) leaves final bridges to the delegate.
func (w *weaver) amend(in *bytecode.Body, inits []fieldInit, ctor bool) *bytecode.Body {
	out := &bytecode.Body{Handlers: in.Handlers, Locals: in.Locals, LocalTypes: in.LocalTypes}
	safe := true
	created := 0
	for _, ins := range in.Insns {
		switch {
		case ins.Op == bytecode.OpNew:
			created++
		case ins.Op == bytecode.OpInvokespecial && ins.Name == "<init>":
			switch {
			case created > 0:
				created--
			case !ctor:
			case ins.Owner == w.c.Name:
				safe = false
			case w.adopt != "" && ins.Owner != w.adopt:
				ins.Owner = w.adopt
				log.Debugf("%s: constructor call redirected to %s", w.c.Name, w.adopt)
			}
		case ins.Op == bytecode.OpReturn:
			for _, fi := range inits {
				if safe || fi.spec.Access&classfile.AccFinal == 0 {
					w.set(fi, out)
				}
			}
		}
		out.Emit(ins)
	}
	return out
}

// set copies the original field of fi into the bridge.
func (w *weaver) set(fi fieldInit, sink bytecode.Sink) {
	get, put := bytecode.OpGetstatic, bytecode.OpPutstatic
	if fi.spec.Access&classfile.AccStatic == 0 {
		sink.Emit(bytecode.Var(bytecode.OpAload, 0))
		put = bytecode.OpPutfield
		if fi.orig.Access&classfile.AccStatic == 0 {
			sink.Emit(bytecode.Op(bytecode.OpDup))
			get = bytecode.OpGetfield
		}
	}
	g := w.rc.Graph
	sink.Emit(bytecode.Field(get, w.c.Name, fi.orig.Name, fi.orig.Desc))
	convert.Emit(g.Load(types.Type(fi.orig.Desc)), g.Load(fi.spec.Returns), sink)
	sink.Emit(bytecode.Field(put, w.c.Name, fi.spec.Name, fi.spec.Desc))
}

// initializers synthesizes the constructor or static initializer that bridge
// fields need when the class declares none.
func (w *weaver) initializers() {
	has := func(name string) bool {
		for _, m := range w.c.Methods {
			if _, ok := w.bodies[m]; ok && m.Name == name {
				return true
			}
		}
		return false
	}
	if len(w.instances) != 0 && !has("<init>") {
		b := &bytecode.Body{Insns: []bytecode.Insn{
			bytecode.Var(bytecode.OpAload, 0),
			bytecode.Method(bytecode.OpInvokespecial, w.c.Super, "<init>", "()V", false),
			bytecode.Op(bytecode.OpReturn),
		}}
		w.add(&classfile.Member{Access: classfile.AccPublic, Name: "<init>", Desc: "()V"}, w.amend(b, w.instances, true))
	}
	if len(w.statics) != 0 && !has("<clinit>") {
		b := &bytecode.Body{Insns: []bytecode.Insn{bytecode.Op(bytecode.OpReturn)}}
		w.add(&classfile.Member{Access: classfile.AccStatic, Name: "<clinit>", Desc: "()V"}, w.amend(b, w.statics, false))
	}
}

func (w *weaver) add(m *classfile.Member, b *bytecode.Body) {
	w.c.Methods = append(w.c.Methods, m)
	w.bodies[m] = b
}

// bridge synthesizes a method forwarding to m.
func (w *weaver) bridge(m *classfile.Member, s *scan.BridgeSpec) error {
	params, ret, err := types.ParseMethod(m.Desc)
	if err != nil {
		return fmt.Errorf("weave: %s.%s%s: %w", w.c.Name, m.Name, m.Desc, err)
	}
	bparams, _, err := types.ParseMethod(s.Desc)
	if err != nil {
		return fmt.Errorf("weave: %s: bridge %s%s: %w", w.c.Name, s.Name, s.Desc, err)
	}
	g := w.rc.Graph
	b := &bytecode.Body{}

	invoke := bytecode.OpInvokestatic
	slot := 0
	if s.Access&classfile.AccStatic == 0 {
		if m.Access&classfile.AccStatic == 0 {
			b.Emit(bytecode.Var(bytecode.OpAload, 0))
			invoke = bytecode.OpInvokespecial
		}
		slot = 1
	}

	from := s.FromIndex
	n := min(len(params), len(bparams), from+s.Length)
	slot += types.Slots(bparams[:min(from, len(bparams))])
	to := 0
	for ; to < min(s.ToIndex, len(params)); to++ {
		convert.Zero(params[to], b)
	}
	for ; from < n && to < len(params); from, to = from+1, to+1 {
		p := bparams[from]
		convert.Load(p, slot, b)
		slot += p.Size()
		convert.Emit(g.Load(p), g.Load(params[to]), b)
	}
	for ; to < len(params); to++ {
		convert.Zero(params[to], b)
	}

	b.Emit(bytecode.Method(invoke, w.c.Name, m.Name, m.Desc, w.c.Access&classfile.AccInterface != 0))
	convert.Emit(g.Load(ret), g.Load(s.Returns), b)
	b.Emit(bytecode.Op(convert.ReturnOp(s.Returns)))

	w.add(&classfile.Member{
		Access:     s.Access,
		Name:       s.Name,
		Desc:       s.Desc,
		Signature:  s.Signature,
		Exceptions: s.Exceptions,
		Visible:    s.Annotations,
	}, b)
	w.rc.Bridges++
	log.Debugf("%s: method %s%s bridges %s%s", w.c.Name, s.Name, s.Desc, m.Name, m.Desc)
	return nil
}
