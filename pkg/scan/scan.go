// Package scan reads the bridge annotations of a class without touching its
// code. The result feeds the type graph (adopted supertypes) and the weave
// (bridge members, access overrides).
package scan

import (
	"strings"

	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.scan")

// Annotation descriptors of the marker runtime.
const (
	Adopt     = "Lbridge/Adopt;"
	Bridge    = "Lbridge/Bridge;"
	Bridges   = "Lbridge/Bridges;"
	Synthetic = "Lbridge/Synthetic;"
)

// MaxArity bounds fromIndex, toIndex and length.
const MaxArity = 255

const accValid = classfile.AccPublic | classfile.AccProtected | classfile.AccPrivate | classfile.AccFinal |
	classfile.AccSynthetic | classfile.AccTransient | classfile.AccVarargs

// BridgeSpec describes one synthesized sibling of a member.
type BridgeSpec struct {
	Access uint16
	Name   string
	Desc   string

	// The original's parameters [ToIndex, ToIndex+n) are passed from the
	// bridge's [FromIndex, FromIndex+n), n bounded by Length.
	FromIndex, ToIndex, Length int

	Exceptions []string
	Signature  string
	// Returns is the bridge's return type (methods) or field type.
	Returns types.Type
	// Annotations are added to the bridge as visible annotations.
	Annotations []*classfile.Annotation
}

// ClassData is what the scan records for a project class. It rides on the
// graph node as Node.Data.
type ClassData struct {
	Name       string
	Access     uint16
	Super      string
	Interfaces []string

	Adopted   bool
	Signature string

	// Members holds the access of every declared member and bridge, keyed
	// by MethodKey or FieldKey.
	Members map[string]uint16
	// Bridges holds the specs of each original member, by the same key.
	Bridges map[string][]*BridgeSpec
}

// MethodKey is the member key of a method.
func MethodKey(name, desc string) string {
	return name + desc
}

// FieldKey is the member key of a field.
func FieldKey(name, desc string) string {
	return desc + name
}

// Of returns the scan data attached to a graph node, or nil.
func Of(n *types.Node) *ClassData {
	if n == nil {
		return nil
	}
	d, _ := n.Data.(*ClassData)
	return d
}

// Record returns the hierarchy record of the scanned class, with adoption
// applied.
func (d *ClassData) Record() types.Record {
	return types.Record{
		Name:       d.Name,
		Access:     d.Access,
		Super:      d.Super,
		Interfaces: d.Interfaces,
		Data:       d,
	}
}

// Private reports whether a member of the class is private. Unknown members
// count as private.
func (d *ClassData) Private(key string) bool {
	acc, ok := d.Members[key]
	return !ok || acc&classfile.AccPrivate != 0
}

// Define scans c and inserts the result into g.
func Define(g *types.Graph, c *classfile.Class) *ClassData {
	d := Scan(c)
	g.Define(d.Record())
	return d
}

// Scan reads the invisible annotations of c and its members.
func Scan(c *classfile.Class) *ClassData {
	d := &ClassData{
		Name:       c.Name,
		Access:     c.Access,
		Super:      c.Super,
		Interfaces: c.Interfaces,
		Members:    make(map[string]uint16),
		Bridges:    make(map[string][]*BridgeSpec),
	}
	for _, a := range c.Invisible {
		switch a.Type {
		case Adopt:
			d.adopt(a)
		case Synthetic:
			d.Access |= classfile.AccSynthetic
		}
	}

	for _, f := range c.Fields {
		key := FieldKey(f.Name, f.Desc)
		d.Members[key] = f.Access
		valid := accValid | f.Access&classfile.AccStatic
		base := spec{
			access:  classfile.AccTransient | classfile.AccSynthetic | f.Access,
			name:    f.Name,
			desc:    f.Desc,
			returns: types.Type(f.Desc),
		}
		d.member(key, f, base, func(s *BridgeSpec) {
			s.Access &= valid
			d.Members[FieldKey(s.Name, s.Desc)] = s.Access
		})
	}

	for _, m := range c.Methods {
		key := MethodKey(m.Name, m.Desc)
		d.Members[key] = m.Access
		valid := accValid | m.Access&classfile.AccStatic
		compatible := m.Access & classfile.AccSynchronized
		if m.Name != "<init>" {
			compatible |= classfile.AccBridge
		}
		base := spec{
			access:     classfile.AccSynthetic | m.Access,
			name:       m.Name,
			desc:       m.Desc,
			exceptions: m.Exceptions,
			returns:    types.ReturnType(m.Desc),
		}
		d.member(key, m, base, func(s *BridgeSpec) {
			s.Access = s.Access&valid | compatible
			d.Members[MethodKey(s.Name, s.Desc)] = s.Access
		})
	}
	return d
}

func (d *ClassData) member(key string, m *classfile.Member, base spec, add func(*BridgeSpec)) {
	keep := func(s *BridgeSpec) {
		add(s)
		d.Bridges[key] = append(d.Bridges[key], s)
		log.Debugf("%s: bridge %s%s for %s", d.Name, s.Name, s.Desc, key)
	}
	for _, a := range m.Invisible {
		switch a.Type {
		case Bridge:
			if s := base.read(a); s != nil {
				keep(s)
			}
		case Bridges:
			v, _ := a.Get("value")
			for _, e := range v.Array {
				if e.Tag != '@' || e.Nested == nil {
					continue
				}
				if s := base.read(e.Nested); s != nil {
					keep(s)
				}
			}
		case Synthetic:
			d.Members[key] = m.Access | classfile.AccSynthetic
		}
	}
}

func (d *ClassData) adopt(a *classfile.Annotation) {
	var clean bool
	if v, ok := a.Get("clean"); ok {
		clean = v.Int != 0
	}
	var ifaces []string
	if v, ok := a.Get("interfaces"); ok {
		for _, e := range v.Array {
			ifaces = append(ifaces, types.Type(e.String).Internal())
		}
	}
	switch {
	case len(ifaces) != 0 && !clean && len(d.Interfaces) != 0:
		d.Interfaces = append(append([]string(nil), d.Interfaces...), ifaces...)
	case len(ifaces) != 0:
		d.Interfaces = ifaces
	case clean:
		d.Interfaces = nil
	}
	if v, ok := a.Get("parent"); ok {
		d.Super = types.Type(v.String).Internal()
	} else if clean {
		d.Super = "java/lang/Object"
	}
	if v, ok := a.Get("signature"); ok {
		d.Signature = v.String
	}
	d.Adopted = true
}

// spec is the starting point of a bridge annotation: the original member.
type spec struct {
	access     uint16
	name       string
	desc       string
	exceptions []string
	returns    types.Type
}

// read applies the elements of one Bridge annotation to the base. It returns
// nil when the bridge would be identical to the original.
func (b spec) read(a *classfile.Annotation) *BridgeSpec {
	s := &BridgeSpec{
		Access:     b.access,
		Name:       b.name,
		Desc:       b.desc,
		Length:     MaxArity,
		Exceptions: b.exceptions,
		Returns:    b.returns,
	}
	var params *string
	for _, e := range a.Elements {
		v := e.Value
		switch e.Name {
		case "access":
			if v.Int < 0 {
				s.Access &= uint16(v.Int)
			} else {
				s.Access = uint16(v.Int)
			}
		case "name":
			if v.String != "" {
				s.Name = v.String
			}
		case "fromIndex":
			s.FromIndex = arity(v.Int)
		case "toIndex":
			s.ToIndex = arity(v.Int)
		case "length":
			s.Length = arity(v.Int)
		case "signature":
			s.Signature = v.String
		case "returns":
			s.Returns = types.Type(v.String)
			s.Desc = s.Desc[:strings.IndexByte(s.Desc, ')')+1] + v.String
		case "params":
			var sb strings.Builder
			for _, p := range v.Array {
				sb.WriteString(p.String)
			}
			p := sb.String()
			params = &p
		case "exceptions":
			s.Exceptions = nil
			for _, x := range v.Array {
				s.Exceptions = append(s.Exceptions, types.Type(x.String).Internal())
			}
		default:
			if v.Tag == '@' && v.Nested != nil {
				s.Annotations = append(s.Annotations, v.Nested)
			}
		}
	}
	if params != nil {
		s.Desc = "(" + *params + ")" + string(s.Returns)
	}
	if s.Name == b.name && s.Desc == b.desc {
		return nil
	}
	return s
}

func arity(v int32) int {
	return int(min(max(v, 0), MaxArity))
}
