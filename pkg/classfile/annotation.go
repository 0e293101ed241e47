package classfile

import (
	"encoding/binary"
	"fmt"
)

// Annotation is a parsed annotation. Annotations read from a class keep the
// bytes they were read from and are written back unchanged.
type Annotation struct {
	Type     string // field descriptor, e.g. "Lbridge/Bridge;"
	Elements []Element

	raw []byte
}

// Element is a named annotation element.
type Element struct {
	Name  string
	Value ElementValue
}

// ElementValue is the value of an annotation element. Tag selects the field
// in use:
//
//	B C I S Z  Int (from a CONSTANT_Integer)
//	J          Long
//	F D        Float / Double
//	s          String
//	e          Enum {type descriptor, constant name}
//	c          String (return descriptor)
//	@          Nested
//	[          Array
type ElementValue struct {
	Tag    byte
	Int    int32
	Long   int64
	Float  float32
	Double float64
	String string
	Enum   [2]string
	Nested *Annotation
	Array  []ElementValue
}

// Get returns the value of the named element.
func (a *Annotation) Get(name string) (ElementValue, bool) {
	for _, e := range a.Elements {
		if e.Name == name {
			return e.Value, true
		}
	}
	return ElementValue{}, false
}

// FindAnnotation returns the first annotation of the given descriptor.
func FindAnnotation(annos []*Annotation, desc string) *Annotation {
	for _, a := range annos {
		if a.Type == desc {
			return a
		}
	}
	return nil
}

// StripAnnotations returns annos without the entries whose type is in descs.
func StripAnnotations(annos []*Annotation, descs ...string) []*Annotation {
	out := annos[:0:0]
next:
	for _, a := range annos {
		for _, d := range descs {
			if a.Type == d {
				continue next
			}
		}
		out = append(out, a)
	}
	return out
}

func parseAnnotations(data []byte, p *Pool) ([]*Annotation, error) {
	r := &reader{data: data}
	n := int(r.u2())
	annos := make([]*Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a, err := parseAnnotation(r, p)
		if err != nil {
			return nil, err
		}
		annos = append(annos, a)
	}
	if r.err != nil {
		return nil, fmt.Errorf("classfile: annotations: %w", r.err)
	}
	return annos, nil
}

func parseAnnotation(r *reader, p *Pool) (*Annotation, error) {
	start := r.pos
	typ, err := p.Utf8(r.u2())
	if err != nil {
		return nil, err
	}
	a := &Annotation{Type: typ}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, err := p.Utf8(r.u2())
		if err != nil {
			return nil, err
		}
		v, err := parseElementValue(r, p)
		if err != nil {
			return nil, err
		}
		a.Elements = append(a.Elements, Element{Name: name, Value: v})
	}
	if r.err == nil {
		a.raw = r.data[start:r.pos:r.pos]
	}
	return a, r.err
}

func parseElementValue(r *reader, p *Pool) (ElementValue, error) {
	v := ElementValue{Tag: r.u1()}
	var err error
	switch v.Tag {
	case 'B', 'C', 'I', 'S', 'Z':
		var c any
		if c, err = p.Value(r.u2()); err == nil {
			i, ok := c.(int32)
			if !ok {
				return v, fmt.Errorf("classfile: element %q is not an integer", v.Tag)
			}
			v.Int = i
		}
	case 'J':
		var c any
		if c, err = p.Value(r.u2()); err == nil {
			v.Long, _ = c.(int64)
		}
	case 'F':
		var c any
		if c, err = p.Value(r.u2()); err == nil {
			v.Float, _ = c.(float32)
		}
	case 'D':
		var c any
		if c, err = p.Value(r.u2()); err == nil {
			v.Double, _ = c.(float64)
		}
	case 's', 'c':
		v.String, err = p.Utf8(r.u2())
	case 'e':
		if v.Enum[0], err = p.Utf8(r.u2()); err == nil {
			v.Enum[1], err = p.Utf8(r.u2())
		}
	case '@':
		v.Nested, err = parseAnnotation(r, p)
	case '[':
		n := int(r.u2())
		for i := 0; i < n && r.err == nil && err == nil; i++ {
			var e ElementValue
			if e, err = parseElementValue(r, p); err == nil {
				v.Array = append(v.Array, e)
			}
		}
	default:
		if r.err == nil {
			err = fmt.Errorf("classfile: unknown element value tag %q", v.Tag)
		}
	}
	if err == nil {
		err = r.err
	}
	return v, err
}

func appendAnnotations(buf []byte, annos []*Annotation, p *Pool) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(annos)))
	for _, a := range annos {
		buf = a.appendTo(buf, p)
	}
	return buf
}

func (a *Annotation) appendTo(buf []byte, p *Pool) []byte {
	if a.raw != nil {
		return append(buf, a.raw...)
	}
	buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(a.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(a.Elements)))
	for _, e := range a.Elements {
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(e.Name))
		buf = e.Value.appendTo(buf, p)
	}
	return buf
}

func (v ElementValue) appendTo(buf []byte, p *Pool) []byte {
	buf = append(buf, v.Tag)
	switch v.Tag {
	case 'B', 'C', 'I', 'S', 'Z':
		buf = binary.BigEndian.AppendUint16(buf, p.AddInteger(v.Int))
	case 'J':
		buf = binary.BigEndian.AppendUint16(buf, p.AddLong(v.Long))
	case 'F':
		buf = binary.BigEndian.AppendUint16(buf, p.AddFloat(v.Float))
	case 'D':
		buf = binary.BigEndian.AppendUint16(buf, p.AddDouble(v.Double))
	case 's', 'c':
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(v.String))
	case 'e':
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(v.Enum[0]))
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(v.Enum[1]))
	case '@':
		buf = v.Nested.appendTo(buf, p)
	case '[':
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Array)))
		for _, e := range v.Array {
			buf = e.appendTo(buf, p)
		}
	}
	return buf
}
